// Package testutil provides a PostgreSQL pool for repository tests.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/pkg/database"
)

// EnvDatabaseURL names the variable holding the test database DSN.
const EnvDatabaseURL = "QA_TEST_DATABASE_URL"

const lockKey int64 = 7261

const truncateAll = `
	TRUNCATE time_extension_votes, question_replies, question_votes, session_questions,
		session_participants, meetupqa, leads, users RESTART IDENTITY CASCADE`

// SetupTestDB connects to the test database, applies migrations and empties every table.
// The test is skipped when QA_TEST_DATABASE_URL is not set.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 10}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)

	// Packages run in parallel against one database; hold a lock so they take turns.
	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire test connection: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockKey); err != nil {
		conn.Release()
		t.Fatalf("lock test database: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockKey)
		conn.Release()
	})

	if err := database.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	if _, err := pool.Exec(ctx, truncateAll); err != nil {
		t.Fatalf("clean test database: %v", err)
	}
	return pool
}
