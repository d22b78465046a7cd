//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"persondir/internal/infra/persistence/storetest"
	"persondir/pkg/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("persondir_test"),
		tcpostgres.WithUsername("persondir"),
		tcpostgres.WithPassword("persondir_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	return dsn
}

func TestPostgresStoreConformance(t *testing.T) {
	dsn := startPostgres(t)
	storetest.Run(t, func(t *testing.T) domain.Store {
		s, err := NewStore(context.Background(), dsn)
		require.NoError(t, err)
		require.NoError(t, s.DropIndex(context.Background(), "idx_employees_gender_name"))
		require.NoError(t, s.Truncate(context.Background()))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
