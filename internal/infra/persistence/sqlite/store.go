// Package sqlite provides the embedded SQLite-backed employees store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite" // pure go sqlite driver
	sqlite3 "modernc.org/sqlite/lib"

	"persondir/internal/infra/persistence/sqlstore"
	"persondir/internal/schema"
	"persondir/pkg/domain"
)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "employees.db"

// maxRowsPerInsert keeps multi-row INSERTs under SQLite's bind variable limit.
const maxRowsPerInsert = 500

// Store persists employees to a single SQLite database file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the database at path and applies the schema.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	s := &Store{Store: sqlstore.New(db, Dialect()), path: path}
	if err := s.ApplySchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// dsn turns LIKE case-sensitive so prefix matches agree with the other
// backends and a BINARY index serves them.
func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=case_sensitive_like(1)"
}

// Dialect returns the SQLite statement set.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "sqlite",
		DDL:               schema.SQLite(),
		Placeholder:       sqlstore.QuestionPlaceholder,
		MaxRowsPerInsert:  maxRowsPerInsert,
		DateArg:           func(t time.Time) any { return t.Format(domain.DateLayout) },
		IsUniqueViolation: IsUniqueViolation,
		ExplainPrefix:     "EXPLAIN QUERY PLAN ",
		ClassifyPlan:      ClassifyPlan,
		ListIndexesSQL: `SELECT name FROM sqlite_master
			WHERE type = 'index' AND tbl_name = 'employees' AND name NOT LIKE 'sqlite_autoindex%'
			ORDER BY name`,
		AnalyzeSQL:   "ANALYZE",
		TruncateSQL:  "DELETE FROM employees",
		Capabilities: domain.Capabilities{Dialect: "sqlite"},
	}
}

// IsUniqueViolation reports whether err is SQLite's UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return domain.LooksLikeUniqueViolation(err)
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return domain.LooksLikeUniqueViolation(err)
	}
	return false
}

// ClassifyPlan reads EXPLAIN QUERY PLAN detail lines. "SCAN employees" is a
// full traversal even when it walks an index for ordering; "SEARCH employees
// USING INDEX name (...)" is an index lookup.
func ClassifyPlan(lines []string) domain.Plan {
	var p domain.Plan
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "SCAN":
			if fields[1] != "CONSTANT" {
				p.FullScan = true
			}
		case "SEARCH":
			if name := indexAfter(fields); name != "" && !strings.HasPrefix(name, "sqlite_autoindex") {
				p.UsesIndex = true
				if p.IndexName == "" {
					p.IndexName = name
				}
			}
		}
	}
	return p
}

func indexAfter(fields []string) string {
	for i, f := range fields {
		if f == "INDEX" && i+1 < len(fields) && fields[i-1] != "AUTOMATIC" {
			return fields[i+1]
		}
	}
	return ""
}
