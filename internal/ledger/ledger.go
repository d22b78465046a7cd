// Package ledger tracks the (full_name, birth_date) pairs produced during one
// generation run so collisions are rejected before they reach the store.
//
// A Ledger is not safe for concurrent use. Parallel generators must share a
// lock-protected or store-backed check instead.
package ledger

import (
	"time"

	"persondir/pkg/domain"
)

// Key is the composite uniqueness key mirrored by the unique_employee constraint.
type Key struct {
	Name      string
	BirthDate time.Time
}

// KeyOf normalises the birth date so equal calendar days compare equal.
func KeyOf(name string, birthDate time.Time) Key {
	return Key{Name: name, BirthDate: domain.DateOf(birthDate)}
}

// Ledger is a hash set of keys.
type Ledger struct {
	seen map[Key]struct{}
}

// New returns an empty ledger pre-sized for capacityHint entries.
func New(capacityHint int) *Ledger {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Ledger{seen: make(map[Key]struct{}, capacityHint)}
}

// Contains reports whether the pair was already added.
func (l *Ledger) Contains(name string, birthDate time.Time) bool {
	_, ok := l.seen[KeyOf(name, birthDate)]
	return ok
}

// Add records the pair. Adding an existing pair is a no-op.
func (l *Ledger) Add(name string, birthDate time.Time) {
	l.seen[KeyOf(name, birthDate)] = struct{}{}
}

// TryAdd adds the pair and reports whether it was new.
func (l *Ledger) TryAdd(name string, birthDate time.Time) bool {
	k := KeyOf(name, birthDate)
	if _, ok := l.seen[k]; ok {
		return false
	}
	l.seen[k] = struct{}{}
	return true
}

// Len returns the number of distinct pairs recorded.
func (l *Ledger) Len() int {
	return len(l.seen)
}
