package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Filter is the two-predicate query used to exercise the composite index:
// gender equality plus a full_name prefix match.
type Filter struct {
	Gender     Gender
	NamePrefix string
}

// Validate rejects filters whose prefix would carry LIKE wildcards.
func (f Filter) Validate() error {
	if !f.Gender.Valid() {
		return fmt.Errorf("filter gender %q must be %s or %s", f.Gender, GenderMale, GenderFemale)
	}
	if f.NamePrefix == "" || strings.ContainsAny(f.NamePrefix, `%_\`) {
		return fmt.Errorf("filter prefix %q must be non-empty and free of wildcards", f.NamePrefix)
	}
	return nil
}

// Pattern returns the LIKE pattern for the prefix.
func (f Filter) Pattern() string { return f.NamePrefix + "%" }

// Matches evaluates the filter in memory with case-sensitive prefix semantics.
func (f Filter) Matches(r Record) bool {
	return r.Gender == f.Gender && strings.HasPrefix(r.FullName, f.NamePrefix)
}

// IndexSpec names a secondary index over logical column names.
type IndexSpec struct {
	Name    string
	Columns []string
}

// Plan is the store's description of how it will execute a query.
type Plan struct {
	Detail    []string `json:"detail"`
	FullScan  bool     `json:"full_scan"`
	UsesIndex bool     `json:"uses_index"`
	IndexName string   `json:"index_name,omitempty"`
	// Cost is the planner's total cost estimate; zero when the store has none.
	Cost float64 `json:"cost,omitempty"`
}

func (p Plan) String() string { return strings.Join(p.Detail, "\n") }

// GenderCount is one row of the per-gender aggregate.
type GenderCount struct {
	Gender Gender `json:"gender"`
	Count  int    `json:"count"`
}

// LetterCount aggregates rows by the first letter of full_name.
type LetterCount struct {
	Letter string `json:"letter"`
	Total  int    `json:"total"`
	Male   int    `json:"male"`
}

// MaleRatio is Male / Total, zero for an empty bucket.
func (l LetterCount) MaleRatio() float64 {
	if l.Total == 0 {
		return 0
	}
	return float64(l.Male) / float64(l.Total)
}

// Capabilities describes backend differences callers select strategies on.
type Capabilities struct {
	Dialect string
	// DistinctOn is true when the store supports SELECT DISTINCT ON.
	DistinctOn bool
	// PlanCost is true when explained plans carry a cost estimate.
	PlanCost bool
}

// Store is the relational store consumed by the loader, the index
// demonstrator and the directory service. Every write runs in its own
// transaction that is either committed or rolled back before returning.
type Store interface {
	Ping(ctx context.Context) error
	ApplySchema(ctx context.Context) error
	Capabilities() Capabilities

	// InsertBatch writes all records in one transaction or none of them.
	// A uniqueness violation is returned as an error matching ErrDuplicate.
	InsertBatch(ctx context.Context, records []Record) (int, error)
	// InsertOne writes a single record in its own transaction and returns its id.
	InsertOne(ctx context.Context, record Record) (int64, error)

	Exists(ctx context.Context, fullName string, birthDate time.Time) (bool, error)
	Count(ctx context.Context) (int, error)
	// ListUnique returns one record per (full_name, birth_date), ordered by full_name.
	ListUnique(ctx context.Context) ([]Record, error)
	Truncate(ctx context.Context) error

	CountMatching(ctx context.Context, f Filter) (int, error)
	FindMatching(ctx context.Context, f Filter, limit int) ([]Record, error)
	ExplainMatching(ctx context.Context, f Filter) (Plan, error)

	CreateIndex(ctx context.Context, spec IndexSpec) error
	DropIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
	RefreshStatistics(ctx context.Context) error

	GenderCounts(ctx context.Context) ([]GenderCount, error)
	LetterCounts(ctx context.Context) ([]LetterCount, error)

	Close() error
}
