// Package sqlstore implements domain.Store over database/sql. Backend
// packages supply a Dialect with their placeholders, plan parsing and
// unique-violation classifier; the queries themselves are shared.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"persondir/internal/schema"
	"persondir/pkg/domain"
)

var _ domain.Store = (*Store)(nil)

const recordColumns = "id, full_name, birth_date, gender"

// Store is a database/sql-backed domain.Store.
type Store struct {
	db     *sql.DB
	d      Dialect
	lister uniqueLister
}

// New wraps an open database handle. The caller keeps ownership of db until Close.
func New(db *sql.DB, d Dialect) *Store {
	if d.MaxRowsPerInsert <= 0 {
		d.MaxRowsPerInsert = 1
	}
	if d.IndexColumn == nil {
		d.IndexColumn = PlainColumn
	}
	return &Store{db: db, d: d, lister: listerFor(d.Capabilities)}
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Capabilities() domain.Capabilities { return s.d.Capabilities }

func (s *Store) Ping(ctx context.Context) error {
	return domain.WrapStore("ping", s.db.PingContext(ctx))
}

// ApplySchema executes the dialect DDL statement by statement.
func (s *Store) ApplySchema(ctx context.Context) error {
	for _, stmt := range schema.SplitStatements(s.d.DDL) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return domain.WrapStore("apply schema", fmt.Errorf("execute ddl: %w", err))
		}
	}
	return nil
}

// InsertBatch writes records with multi-row INSERTs inside one transaction.
func (s *Store) InsertBatch(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	err := s.withTx(ctx, "insert batch", domain.Record{}, func(tx *sql.Tx) error {
		for start := 0; start < len(records); start += s.d.MaxRowsPerInsert {
			end := min(start+s.d.MaxRowsPerInsert, len(records))
			query, args := s.insertStatement(records[start:end])
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// InsertOne writes a single record in its own transaction.
func (s *Store) InsertOne(ctx context.Context, record domain.Record) (int64, error) {
	var id int64
	err := s.withTx(ctx, "insert", record, func(tx *sql.Tx) error {
		query, args := s.insertStatement([]domain.Record{record})
		return tx.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertStatement(records []domain.Record) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO employees (full_name, birth_date, gender) VALUES ")
	args := make([]any, 0, len(records)*3)
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "(%s, %s, %s)", s.d.Placeholder(n+1), s.d.Placeholder(n+2), s.d.Placeholder(n+3))
		args = append(args, r.FullName, s.d.DateArg(r.BirthDate), string(r.Gender))
	}
	return b.String(), args
}

// withTx runs fn in a transaction that is rolled back unless it commits.
func (s *Store) withTx(ctx context.Context, op string, rec domain.Record, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStore(op, fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return s.classify(op, rec, err)
	}
	if err := tx.Commit(); err != nil {
		return s.classify(op, rec, fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

func (s *Store) classify(op string, rec domain.Record, err error) error {
	if s.d.IsUniqueViolation != nil && s.d.IsUniqueViolation(err) {
		return domain.NewStoreDuplicate(rec, err)
	}
	return domain.WrapStore(op, err)
}

func (s *Store) Exists(ctx context.Context, fullName string, birthDate time.Time) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM employees WHERE full_name = %s AND birth_date = %s LIMIT 1",
		s.d.Placeholder(1), s.d.Placeholder(2))
	var one int
	err := s.db.QueryRowContext(ctx, query, fullName, s.d.DateArg(domain.DateOf(birthDate))).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, domain.WrapStore("exists", err)
	}
	return true, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employees").Scan(&n); err != nil {
		return 0, domain.WrapStore("count", err)
	}
	return n, nil
}

// ListUnique returns one row per (full_name, birth_date) ordered by name.
func (s *Store) ListUnique(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.lister.listSQL())
	if err != nil {
		return nil, domain.WrapStore("list unique", err)
	}
	return s.scanRecords(rows, "list unique")
}

func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.d.TruncateSQL)
	return domain.WrapStore("truncate", err)
}

func (s *Store) matchingWhere() string {
	return fmt.Sprintf(" FROM employees WHERE gender = %s AND full_name LIKE %s",
		s.d.Placeholder(1), s.d.Placeholder(2))
}

func (s *Store) CountMatching(ctx context.Context, f domain.Filter) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+s.matchingWhere(), string(f.Gender), f.Pattern()).Scan(&n)
	if err != nil {
		return 0, domain.WrapStore("count matching", err)
	}
	return n, nil
}

func (s *Store) findQuery(limit int) string {
	q := "SELECT " + recordColumns + s.matchingWhere() + " ORDER BY full_name, birth_date, id"
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q
}

// FindMatching returns matching rows ordered by name; limit <= 0 means all.
func (s *Store) FindMatching(ctx context.Context, f domain.Filter, limit int) ([]domain.Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.findQuery(limit), string(f.Gender), f.Pattern())
	if err != nil {
		return nil, domain.WrapStore("find matching", err)
	}
	return s.scanRecords(rows, "find matching")
}

// ExplainMatching explains the FindMatching statement without a limit.
func (s *Store) ExplainMatching(ctx context.Context, f domain.Filter) (domain.Plan, error) {
	if err := f.Validate(); err != nil {
		return domain.Plan{}, err
	}
	rows, err := s.db.QueryContext(ctx, s.d.ExplainPrefix+s.findQuery(0), string(f.Gender), f.Pattern())
	if err != nil {
		return domain.Plan{}, domain.WrapStore("explain", err)
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return domain.Plan{}, domain.WrapStore("explain", err)
	}
	var lines []string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.Plan{}, domain.WrapStore("explain", err)
		}
		// The detail text is the last column for every supported dialect.
		lines = append(lines, asString(values[len(values)-1]))
	}
	if err := rows.Err(); err != nil {
		return domain.Plan{}, domain.WrapStore("explain", err)
	}
	plan := s.d.ClassifyPlan(lines)
	plan.Detail = lines
	return plan, nil
}

// CreateIndex creates spec on employees. Callers wanting idempotence drop first.
func (s *Store) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	if spec.Name == "" || len(spec.Columns) == 0 {
		return fmt.Errorf("index spec needs a name and at least one column")
	}
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = s.d.IndexColumn(c)
	}
	stmt := fmt.Sprintf("CREATE INDEX %s ON employees (%s)", spec.Name, strings.Join(cols, ", "))
	_, err := s.db.ExecContext(ctx, stmt)
	return domain.WrapStore("create index", err)
}

func (s *Store) DropIndex(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DROP INDEX IF EXISTS "+name)
	return domain.WrapStore("drop index", err)
}

// ListIndexes returns secondary index names, excluding constraint-backed ones.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.d.ListIndexesSQL)
	if err != nil {
		return nil, domain.WrapStore("list indexes", err)
	}
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.WrapStore("list indexes", err)
		}
		names = append(names, name)
	}
	return names, domain.WrapStore("list indexes", rows.Err())
}

func (s *Store) RefreshStatistics(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.d.AnalyzeSQL)
	return domain.WrapStore("refresh statistics", err)
}

func (s *Store) GenderCounts(ctx context.Context) ([]domain.GenderCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT gender, COUNT(*) FROM employees GROUP BY gender ORDER BY gender`)
	if err != nil {
		return nil, domain.WrapStore("gender counts", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.GenderCount
	for rows.Next() {
		var gc domain.GenderCount
		var g string
		if err := rows.Scan(&g, &gc.Count); err != nil {
			return nil, domain.WrapStore("gender counts", err)
		}
		gc.Gender = domain.Gender(g)
		out = append(out, gc)
	}
	return out, domain.WrapStore("gender counts", rows.Err())
}

func (s *Store) LetterCounts(ctx context.Context) ([]domain.LetterCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT SUBSTR(full_name, 1, 1) AS letter,
			COUNT(*),
			SUM(CASE WHEN gender = 'Male' THEN 1 ELSE 0 END)
		FROM employees
		GROUP BY letter
		ORDER BY letter`)
	if err != nil {
		return nil, domain.WrapStore("letter counts", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.LetterCount
	for rows.Next() {
		var lc domain.LetterCount
		if err := rows.Scan(&lc.Letter, &lc.Total, &lc.Male); err != nil {
			return nil, domain.WrapStore("letter counts", err)
		}
		out = append(out, lc)
	}
	return out, domain.WrapStore("letter counts", rows.Err())
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) scanRecords(rows *sql.Rows, op string) ([]domain.Record, error) {
	defer func() { _ = rows.Close() }()
	var out []domain.Record
	for rows.Next() {
		var (
			r      domain.Record
			gender string
			born   any
		)
		if err := rows.Scan(&r.ID, &r.FullName, &born, &gender); err != nil {
			return nil, domain.WrapStore(op, err)
		}
		d, err := parseDate(born)
		if err != nil {
			return nil, domain.WrapStore(op, err)
		}
		r.BirthDate = d
		r.Gender = domain.Gender(gender)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore(op, err)
	}
	return out, nil
}

// parseDate accepts the shapes drivers hand back for a DATE column.
func parseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return domain.DateOf(t), nil
	case string:
		return parseDateText(t)
	case []byte:
		return parseDateText(string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported birth_date value %T", v)
	}
}

func parseDateText(s string) (time.Time, error) {
	if len(s) >= len(domain.DateLayout) {
		if t, err := time.Parse(domain.DateLayout, s[:len(domain.DateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse birth_date %q", s)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
