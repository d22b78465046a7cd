// Package postgres provides the Postgres-backed employees store over the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"persondir/internal/infra/persistence/sqlstore"
	"persondir/internal/schema"
	"persondir/pkg/domain"
)

const (
	defaultDriver = "pgx"
	// DefaultDSN matches the local development database.
	DefaultDSN = "postgres://localhost/persondir?sslmode=disable"

	uniqueViolation = "23505"
	pingTimeout     = 5 * time.Second
	// Postgres allows 65535 bind parameters per statement; three per row.
	maxRowsPerInsert = 5000
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists employees to Postgres.
type Store struct {
	*sqlstore.Store
}

// NewStore opens a Postgres-backed store using dsn (falls back to DefaultDSN)
// and applies the schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{Store: sqlstore.New(db, Dialect())}
	if err := s.ApplySchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Dialect returns the Postgres statement set.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "postgres",
		DDL:               schema.Postgres(),
		Placeholder:       sqlstore.DollarPlaceholder,
		MaxRowsPerInsert:  maxRowsPerInsert,
		DateArg:           func(t time.Time) any { return domain.DateOf(t) },
		IsUniqueViolation: IsUniqueViolation,
		ExplainPrefix:     "EXPLAIN ",
		ClassifyPlan:      ClassifyPlan,
		IndexColumn:       indexColumn,
		ListIndexesSQL: `SELECT indexname FROM pg_indexes
			WHERE schemaname = current_schema() AND tablename = 'employees'
				AND indexname NOT IN ('employees_pkey', 'unique_employee')
			ORDER BY indexname`,
		AnalyzeSQL:   "ANALYZE employees",
		TruncateSQL:  "TRUNCATE TABLE employees RESTART IDENTITY",
		Capabilities: domain.Capabilities{Dialect: "postgres", DistinctOn: true, PlanCost: true},
	}
}

// indexColumn uses text_pattern_ops so LIKE 'prefix%' can use the index
// under any database collation.
func indexColumn(column string) string {
	if column == "full_name" {
		return "full_name text_pattern_ops"
	}
	return column
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505. Errors
// without a SQLSTATE fall back to message keywords.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return domain.LooksLikeUniqueViolation(err)
}

var costPattern = regexp.MustCompile(`cost=[0-9.]+\.\.([0-9.]+)`)

// ClassifyPlan reads text-format EXPLAIN output.
func ClassifyPlan(lines []string) domain.Plan {
	var p domain.Plan
	for i, line := range lines {
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "->"))
		if i == 0 {
			if m := costPattern.FindStringSubmatch(text); m != nil {
				if cost, err := strconv.ParseFloat(m[1], 64); err == nil {
					p.Cost = cost
				}
			}
		}
		switch {
		case strings.HasPrefix(text, "Seq Scan on employees"), strings.HasPrefix(text, "Parallel Seq Scan on employees"):
			p.FullScan = true
		case strings.Contains(text, "Index Scan using "), strings.Contains(text, "Index Only Scan using "):
			markIndex(&p, wordAfter(text, " using "))
		case strings.Contains(text, "Bitmap Index Scan on "):
			markIndex(&p, wordAfter(text, "Bitmap Index Scan on "))
		}
	}
	return p
}

func markIndex(p *domain.Plan, name string) {
	if name == "" || name == "employees_pkey" || name == schema.UniqueConstraint {
		return
	}
	p.UsesIndex = true
	if p.IndexName == "" {
		p.IndexName = name
	}
}

func wordAfter(text, marker string) string {
	i := strings.Index(text, marker)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(text[i+len(marker):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
