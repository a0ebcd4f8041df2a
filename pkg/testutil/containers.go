//go:build integration

// Package testutil starts the backing services integration tests run
// against. Containers are shared across packages by name.
package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/secufusion/iamplane/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

const (
	postgresContainer = "iamplane-postgres-shared"
	redisContainer    = "iamplane-redis-shared"
)

// StartPostgres runs a migrated Postgres and returns a connection to it.
func StartPostgres(tb testing.TB, opts ...testcontainers.ContainerCustomizer) *sqlx.DB {
	tb.Helper()

	options := append([]testcontainers.ContainerCustomizer{
		postgres.WithDatabase("iam"),
		postgres.WithUsername("iam"),
		postgres.WithPassword("iam"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithReuseByName(postgresContainer),
	}, opts...)

	service, err := postgres.Run(tb.Context(), "postgres:16-alpine", options...)
	require.NoError(tb, err)

	dsn, err := service.ConnectionString(tb.Context(), "sslmode=disable")
	require.NoError(tb, err)

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Up(tb.Context(), db.DB)
	require.NoError(tb, err)
	return db
}

// StartRedis runs Redis and returns a client for it. The instance is shared,
// so callers keep their keys distinct.
func StartRedis(tb testing.TB, opts ...testcontainers.ContainerCustomizer) *goredis.Client {
	tb.Helper()

	options := append([]testcontainers.ContainerCustomizer{
		testcontainers.WithReuseByName(redisContainer),
	}, opts...)

	service, err := redis.Run(tb.Context(), "redis:7", options...)
	require.NoError(tb, err)

	uri, err := service.ConnectionString(tb.Context())
	require.NoError(tb, err)

	o, err := goredis.ParseURL(uri)
	require.NoError(tb, err)

	rdb := goredis.NewClient(o)
	tb.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
