package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dimaystinov/bot-hnushka/internal/platform/sqlstore"
)

// TestTimeout bounds setup statements.
const TestTimeout = 10 * time.Second

// OpenSQLite returns a migrated SQLite database in t's temporary directory.
// The test is skipped when the sqlite3 driver was built without cgo.
func OpenSQLite(t *testing.T) (*sql.DB, sqlstore.Dialect) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "items.db")
	db, err := open(t, sqlstore.SQLite, path)
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skipf("sqlite3 driver unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("failed to open sqlite test database: %v", err)
	}
	return db, sqlstore.SQLite
}

// OpenPostgres returns the migrated Postgres test database with an empty
// work_items table, or skips t when none is configured.
func OpenPostgres(t *testing.T) (*sql.DB, sqlstore.Dialect) {
	t.Helper()

	if ShouldSkipDatabaseTest() {
		t.Skip("BOT_TEST_DB_URL not set, skipping postgres test")
	}

	db, err := open(t, sqlstore.Postgres, PostgresURL())
	if err != nil {
		t.Fatalf("failed to open postgres test database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, "DELETE FROM work_items"); err != nil {
		t.Fatalf("failed to empty work_items: %v", err)
	}
	return db, sqlstore.Postgres
}

func open(t *testing.T, dialect sqlstore.Dialect, url string) (*sql.DB, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := sqlstore.Open(ctx, dialect, url)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { CleanupDB(t, db) })

	if err := sqlstore.Migrate(ctx, db, dialect, "up", discardLogger()); err != nil {
		return nil, err
	}
	return db, nil
}

// CleanupDB closes db, reporting a failure as a test error.
func CleanupDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
