package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persondir/internal/infra/persistence/memory"
	"persondir/internal/infra/persistence/sqlite"
	"persondir/internal/platform/config"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.Config{StorageDriver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
	assert.Equal(t, "memory", s.Capabilities().Dialect)
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "employees.db")
	s, err := Open(context.Background(), config.Config{StorageDriver: config.DriverSQLite, SQLitePath: path})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer func() { _ = s.Close() }()
	require.IsType(t, &sqlite.Store{}, s)
	assert.Equal(t, path, s.(*sqlite.Store).Path())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StorageDriver: "oracle"})
	assert.ErrorContains(t, err, "unknown storage driver oracle")
}
