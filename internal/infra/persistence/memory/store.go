// Package memory provides an in-memory implementation of the employees store
// used for tests and ephemeral runs. It enforces the same uniqueness rule as
// the relational backends and simulates query plans from its index catalogue.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"persondir/internal/ledger"
	"persondir/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain store interface.
var _ domain.Store = (*Store)(nil)

// Op names the store operation a FaultFunc is consulted for.
type Op string

const (
	OpInsertBatch Op = "insert batch"
	OpInsertOne   Op = "insert"
	OpQuery       Op = "query"
)

// FaultFunc returns a non-nil error to make op fail before it touches state.
type FaultFunc func(op Op, records []domain.Record) error

// Store keeps employees in insertion order behind a RWMutex.
type Store struct {
	mu      sync.RWMutex
	rows    []domain.Record
	keys    map[ledger.Key]int64
	nextID  int64
	indexes map[string]domain.IndexSpec
	fault   FaultFunc
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithFault installs a fault injector consulted before every write and query.
func WithFault(fn FaultFunc) Option {
	return func(s *Store) { s.fault = fn }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		keys:    make(map[ledger.Key]int64),
		nextID:  1,
		indexes: make(map[string]domain.IndexSpec),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFault replaces the fault injector; nil clears it.
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) check(op Op, records []domain.Record) error {
	if s.closed {
		return domain.WrapStore(string(op), fmt.Errorf("store closed"))
	}
	if s.fault == nil {
		return nil
	}
	if err := s.fault(op, records); err != nil {
		return domain.WrapStore(string(op), err)
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(OpQuery, nil)
}

func (s *Store) ApplySchema(context.Context) error { return nil }

func (s *Store) Capabilities() domain.Capabilities {
	return domain.Capabilities{Dialect: "memory"}
}

// InsertBatch applies all records or none of them.
func (s *Store) InsertBatch(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, domain.WrapStore(string(OpInsertBatch), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpInsertBatch, records); err != nil {
		return 0, err
	}
	pending := ledger.New(len(records))
	for _, r := range records {
		if err := validRow(r); err != nil {
			return 0, domain.WrapStore(string(OpInsertBatch), err)
		}
		if _, exists := s.keys[ledger.KeyOf(r.FullName, r.BirthDate)]; exists || !pending.TryAdd(r.FullName, r.BirthDate) {
			return 0, domain.NewStoreDuplicate(domain.Record{}, fmt.Errorf("unique_employee violated by %q", r.FullName))
		}
	}
	for _, r := range records {
		s.appendRow(r)
	}
	return len(records), nil
}

func (s *Store) InsertOne(ctx context.Context, record domain.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.WrapStore(string(OpInsertOne), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpInsertOne, []domain.Record{record}); err != nil {
		return 0, err
	}
	if err := validRow(record); err != nil {
		return 0, domain.WrapStore(string(OpInsertOne), err)
	}
	if _, exists := s.keys[ledger.KeyOf(record.FullName, record.BirthDate)]; exists {
		return 0, domain.NewStoreDuplicate(record, fmt.Errorf("unique_employee violated"))
	}
	return s.appendRow(record), nil
}

// validRow mirrors the relational NOT NULL and CHECK constraints.
func validRow(r domain.Record) error {
	if r.FullName == "" || r.BirthDate.IsZero() {
		return fmt.Errorf("not null constraint violated")
	}
	if !r.Gender.Valid() {
		return fmt.Errorf("check constraint on gender violated by %q", r.Gender)
	}
	return nil
}

func (s *Store) appendRow(r domain.Record) int64 {
	r.ID = s.nextID
	r.BirthDate = domain.DateOf(r.BirthDate)
	s.nextID++
	s.rows = append(s.rows, r)
	s.keys[ledger.KeyOf(r.FullName, r.BirthDate)] = r.ID
	return r.ID
}

func (s *Store) Exists(_ context.Context, fullName string, birthDate time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(OpQuery, nil); err != nil {
		return false, err
	}
	_, ok := s.keys[ledger.KeyOf(fullName, birthDate)]
	return ok, nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(OpQuery, nil); err != nil {
		return 0, err
	}
	return len(s.rows), nil
}

// ListUnique returns every row ordered by name; rows are unique by construction.
func (s *Store) ListUnique(context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(OpQuery, nil); err != nil {
		return nil, err
	}
	out := slices.Clone(s.rows)
	sortByName(out)
	return out, nil
}

func (s *Store) Truncate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpQuery, nil); err != nil {
		return err
	}
	s.rows = nil
	s.keys = make(map[ledger.Key]int64)
	s.nextID = 1
	return nil
}

func (s *Store) CountMatching(ctx context.Context, f domain.Filter) (int, error) {
	rows, err := s.FindMatching(ctx, f, 0)
	return len(rows), err
}

func (s *Store) FindMatching(_ context.Context, f domain.Filter, limit int) ([]domain.Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(OpQuery, nil); err != nil {
		return nil, err
	}
	var out []domain.Record
	for _, r := range s.rows {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sortByName(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExplainMatching reports an index search when an index leads with
// (gender, full_name) and a full scan otherwise.
func (s *Store) ExplainMatching(ctx context.Context, f domain.Filter) (domain.Plan, error) {
	matches, err := s.CountMatching(ctx, f)
	if err != nil {
		return domain.Plan{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.indexNames() {
		spec := s.indexes[name]
		if len(spec.Columns) >= 2 && spec.Columns[0] == "gender" && spec.Columns[1] == "full_name" {
			return domain.Plan{
				Detail:    []string{fmt.Sprintf("SEARCH employees USING INDEX %s (gender=? AND full_name>?)", name)},
				UsesIndex: true,
				IndexName: name,
				Cost:      float64(matches),
			}, nil
		}
	}
	return domain.Plan{
		Detail:   []string{"SCAN employees"},
		FullScan: true,
		Cost:     float64(len(s.rows)),
	}, nil
}

func (s *Store) CreateIndex(_ context.Context, spec domain.IndexSpec) error {
	if spec.Name == "" || len(spec.Columns) == 0 {
		return fmt.Errorf("index spec needs a name and at least one column")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indexes[spec.Name]; exists {
		return domain.WrapStore("create index", fmt.Errorf("index %s already exists", spec.Name))
	}
	s.indexes[spec.Name] = domain.IndexSpec{Name: spec.Name, Columns: slices.Clone(spec.Columns)}
	return nil
}

func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, name)
	return nil
}

func (s *Store) ListIndexes(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexNames(), nil
}

func (s *Store) indexNames() []string {
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) RefreshStatistics(context.Context) error { return nil }

func (s *Store) GenderCounts(context.Context) ([]domain.GenderCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[domain.Gender]int{}
	for _, r := range s.rows {
		counts[r.Gender]++
	}
	out := make([]domain.GenderCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, domain.GenderCount{Gender: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gender < out[j].Gender })
	return out, nil
}

func (s *Store) LetterCounts(context.Context) ([]domain.LetterCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buckets := map[string]*domain.LetterCount{}
	for _, r := range s.rows {
		letter := firstLetter(r.FullName)
		lc, ok := buckets[letter]
		if !ok {
			lc = &domain.LetterCount{Letter: letter}
			buckets[letter] = lc
		}
		lc.Total++
		if r.Gender == domain.GenderMale {
			lc.Male++
		}
	}
	out := make([]domain.LetterCount, 0, len(buckets))
	for _, lc := range buckets {
		out = append(out, *lc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Letter < out[j].Letter })
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func firstLetter(name string) string {
	for _, r := range name {
		return string(r)
	}
	return ""
}

func sortByName(rows []domain.Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FullName != rows[j].FullName {
			return rows[i].FullName < rows[j].FullName
		}
		if !rows[i].BirthDate.Equal(rows[j].BirthDate) {
			return rows[i].BirthDate.Before(rows[j].BirthDate)
		}
		return rows[i].ID < rows[j].ID
	})
}

// Snapshot returns a copy of all rows in insertion order.
func (s *Store) Snapshot() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rows)
}
