// Package testdb provides the shared harness for database integration
// tests: it connects to the database named by EMBEDQ_TEST_DB_URL (or
// DATABASE_URL), applies the embedded migrations, and resets queue state
// between tests. Tests skip on developer machines without a database and
// fail in CI, where one is expected to be provisioned.
package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	// Register the pgx driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mataresit/embedq/internal/ciutil"
	"github.com/mataresit/embedq/migrations"
)

// Get opens a migrated connection to the integration-test database. The
// connection is closed automatically when the test finishes.
func Get(t *testing.T) *sql.DB {
	t.Helper()

	url := ciutil.TestDatabaseURL()
	if url == "" {
		if ciutil.IsCI() {
			t.Fatalf("integration database not configured; set %s", ciutil.EnvTestDatabaseURL)
		}
		t.Skipf("set %s to run database integration tests", ciutil.EnvTestDatabaseURL)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}

	migrate(t, db)
	Reset(t, db)
	return db
}

// Reset clears all queue state so each test starts from an empty queue.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()

	if _, err := db.Exec("TRUNCATE embedding_queue"); err != nil {
		t.Fatalf("failed to reset queue table: %v", err)
	}
}

func migrate(t *testing.T, db *sql.DB) {
	t.Helper()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("failed to set migration dialect: %v", err)
	}
	if err := goose.Up(db, "."); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
}
