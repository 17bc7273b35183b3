//go:build integration

// Package testdb starts a disposable pgvector Postgres for integration tests.
package testdb

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/pkg/database"
)

const image = "pgvector/pgvector:pg16"

// Start runs a pgvector container, applies the schema for the given dimension and returns a pool
// with vector types registered. Everything is torn down when the test ends.
func Start(t *testing.T, dimensions int) (*pgxpool.Pool, string) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase("coursegen"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start postgres container")

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.EnsureVectorExtension(ctx, url))

	pool, err := database.NewPostgresPool(ctx, url, database.WithVectorTypes())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, repository.ApplySchema(ctx, pool, dimensions))

	return pool, url
}
