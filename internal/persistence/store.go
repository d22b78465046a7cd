// Package persistence selects and opens the configured employees store.
package persistence

import (
	"context"
	"fmt"

	"persondir/internal/infra/persistence/memory"
	"persondir/internal/infra/persistence/postgres"
	"persondir/internal/infra/persistence/sqlite"
	"persondir/internal/platform/config"
	"persondir/pkg/domain"
)

// Store is the full store contract used by the directory service.
type Store = domain.Store

// Open selects a backend from cfg. The returned store has its schema
// applied and a verified connection.
//
//	sqlite:   embedded file at cfg.SQLitePath (default employees.db)
//	postgres: server at cfg.PostgresDSN
//	memory:   in-process only (tests / ephemeral runs)
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverSQLite, "":
		s, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}
