package sqlstore

import "persondir/pkg/domain"

// uniqueLister renders the "one row per (full_name, birth_date), ordered by
// name" listing. Stores pick an implementation from their capabilities.
type uniqueLister interface {
	listSQL() string
}

// distinctOnLister relies on SELECT DISTINCT ON.
type distinctOnLister struct{}

func (distinctOnLister) listSQL() string {
	return `SELECT DISTINCT ON (full_name, birth_date) id, full_name, birth_date, gender
		FROM employees
		ORDER BY full_name, birth_date, id`
}

// groupByLister is portable across dialects without DISTINCT ON.
type groupByLister struct{}

func (groupByLister) listSQL() string {
	return `SELECT MIN(id), full_name, birth_date, MIN(gender)
		FROM employees
		GROUP BY full_name, birth_date
		ORDER BY full_name, birth_date`
}

func listerFor(caps domain.Capabilities) uniqueLister {
	if caps.DistinctOn {
		return distinctOnLister{}
	}
	return groupByLister{}
}
