package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persondir/internal/infra/persistence/postgres/testutil"
	"persondir/internal/infra/persistence/storetest"
	"persondir/internal/schema"
	"persondir/pkg/domain"
)

func newStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	s, err := NewStore(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, conn
}

func TestNewStoreAppliesDDL(t *testing.T) {
	_, conn := newStubStore(t)
	expected := schema.SplitStatements(schema.Postgres())
	require.Len(t, conn.Execs, len(expected))
	for i, stmt := range expected {
		assert.Equal(t, strings.TrimSpace(stmt), strings.TrimSpace(conn.Execs[i].Query))
	}
}

func TestNewStoreOpenAndPingFailures(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("bad dsn") })
	_, err := NewStore(context.Background(), "postgres://nowhere")
	restore()
	assert.ErrorContains(t, err, "open postgres")

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	_, err = NewStore(context.Background(), "")
	assert.ErrorContains(t, err, "ping postgres")
}

func TestInsertBatchUsesNumberedPlaceholders(t *testing.T) {
	s, conn := newStubStore(t)
	conn.Execs = nil
	n, err := s.InsertBatch(context.Background(), storetest.Fixture()[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, conn.Execs, 1)
	exec := conn.Execs[0]
	assert.Contains(t, exec.Query, "($1, $2, $3), ($4, $5, $6)")
	require.Len(t, exec.Args, 6)
	assert.Equal(t, "Ivanov Petr Sergeevich", exec.Args[0])
	assert.IsType(t, time.Time{}, exec.Args[1])
	assert.Equal(t, "Male", exec.Args[2])
	assert.Equal(t, 1, conn.Commits)
}

func TestInsertBatchClassifiesUniqueViolation(t *testing.T) {
	s, conn := newStubStore(t)
	conn.ExecErr = func(q string) error {
		if strings.HasPrefix(q, "INSERT") {
			return &pgconn.PgError{Code: "23505", ConstraintName: schema.UniqueConstraint}
		}
		return nil
	}
	_, err := s.InsertBatch(context.Background(), storetest.Fixture())
	require.Error(t, err)
	assert.True(t, domain.IsDuplicate(err))
	assert.Equal(t, 0, conn.Commits)
	assert.Equal(t, 1, conn.Rollbacks)
}

func TestInsertBatchConnectivityFailureIsStoreError(t *testing.T) {
	s, conn := newStubStore(t)
	conn.FailBegin = true
	_, err := s.InsertBatch(context.Background(), storetest.Fixture())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.False(t, domain.IsDuplicate(err))
}

func TestTruncateAndIndexStatements(t *testing.T) {
	ctx := context.Background()
	s, conn := newStubStore(t)
	conn.Execs = nil

	require.NoError(t, s.Truncate(ctx))
	require.NoError(t, s.CreateIndex(ctx, domain.IndexSpec{Name: "idx_employees_gender_name", Columns: []string{"gender", "full_name"}}))
	require.NoError(t, s.DropIndex(ctx, "idx_employees_gender_name"))
	require.NoError(t, s.RefreshStatistics(ctx))

	assert.Equal(t, []string{
		"TRUNCATE TABLE employees RESTART IDENTITY",
		"CREATE INDEX idx_employees_gender_name ON employees (gender, full_name text_pattern_ops)",
		"DROP INDEX IF EXISTS idx_employees_gender_name",
		"ANALYZE employees",
	}, conn.ExecQueries())
}

func TestListUniqueUsesDistinctOn(t *testing.T) {
	s, conn := newStubStore(t)
	conn.Results = []testutil.Result{{
		Match:   "DISTINCT ON",
		Columns: []string{"id", "full_name", "birth_date", "gender"},
		Rows: [][]driver.Value{
			{int64(2), "Abramova Olga Ivanovna", time.Date(1979, 1, 5, 0, 0, 0, 0, time.UTC), "Female"},
			{int64(1), "Ivanov Petr Sergeevich", time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC), "Male"},
		},
	}}
	got, err := s.ListUnique(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, domain.GenderFemale, got[0].Gender)
	assert.True(t, s.Capabilities().DistinctOn)
}

func TestExplainMatchingParsesCost(t *testing.T) {
	s, conn := newStubStore(t)
	conn.Results = []testutil.Result{{
		Match:   "EXPLAIN ",
		Columns: []string{"QUERY PLAN"},
		Rows: [][]driver.Value{
			{"Sort  (cost=120.50..121.00 rows=100 width=40)"},
			{"  Sort Key: full_name, birth_date, id"},
			{"  ->  Bitmap Heap Scan on employees  (cost=5.10..110.00 rows=100 width=40)"},
			{"        ->  Bitmap Index Scan on idx_employees_gender_name  (cost=0.00..5.08 rows=100 width=0)"},
		},
	}}
	plan, err := s.ExplainMatching(context.Background(), domain.Filter{Gender: domain.GenderMale, NamePrefix: "F"})
	require.NoError(t, err)
	assert.True(t, plan.UsesIndex)
	assert.False(t, plan.FullScan)
	assert.Equal(t, "idx_employees_gender_name", plan.IndexName)
	assert.InDelta(t, 121.0, plan.Cost, 0.001)
	assert.Len(t, plan.Detail, 4)
}

func TestClassifyPlan(t *testing.T) {
	seq := ClassifyPlan([]string{
		"Sort  (cost=2000.10..2001.00 rows=90 width=40)",
		"  ->  Seq Scan on employees  (cost=0.00..1990.00 rows=90 width=40)",
		"        Filter: (((full_name)::text ~~ 'F%'::text) AND ((gender)::text = 'Male'::text))",
	})
	assert.True(t, seq.FullScan)
	assert.False(t, seq.UsesIndex)
	assert.InDelta(t, 2001.0, seq.Cost, 0.001)

	idx := ClassifyPlan([]string{"Index Scan using idx_employees_gender_name on employees  (cost=0.42..8.44 rows=1 width=40)"})
	assert.True(t, idx.UsesIndex)
	assert.Equal(t, "idx_employees_gender_name", idx.IndexName)

	pkey := ClassifyPlan([]string{"Index Scan using employees_pkey on employees  (cost=0.42..8.44 rows=1 width=40)"})
	assert.False(t, pkey.UsesIndex)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23514"}))
	assert.True(t, IsUniqueViolation(errors.New("duplicate key value violates unique constraint")))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
}
