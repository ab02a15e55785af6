package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/phrazzld/folio-api/internal/redact"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds the setup work done for a test database.
const TestTimeout = 10 * time.Second

// PostgresURLEnv names the variable holding a PostgreSQL URL for tests.
const PostgresURLEnv = "FOLIO_TEST_DATABASE_URL"

// SQLiteDSN returns the DSN of a SQLite database file at path with foreign
// keys enforced.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// New opens a migrated SQLite database private to t. The connection is
// closed when the test completes.
func New(t *testing.T) (*sql.DB, sqlstore.Dialect) {
	t.Helper()
	dsn := SQLiteDSN(filepath.Join(t.TempDir(), "folio.db"))
	return open(t, sqlstore.DriverSQLite, dsn)
}

// NewPostgres opens the PostgreSQL database named by FOLIO_TEST_DATABASE_URL
// and applies the migrations. The test is skipped when the variable is not
// set.
func NewPostgres(t *testing.T) (*sql.DB, sqlstore.Dialect) {
	t.Helper()
	dsn := os.Getenv(PostgresURLEnv)
	if dsn == "" {
		t.Skipf("%s not set - skipping PostgreSQL test", PostgresURLEnv)
	}
	return open(t, sqlstore.DriverPostgres, dsn)
}

func open(t *testing.T, driver, dsn string) (*sql.DB, sqlstore.Dialect) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, dialect, err := sqlstore.Open(ctx, driver, dsn, sqlstore.Options{})
	require.NoError(t, err, "failed to open test database %s", redact.String(dsn))
	t.Cleanup(func() { CleanupDB(t, db) })

	migrator, err := sqlstore.NewMigrator(db, dialect, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err, "failed to create migrator")
	_, err = migrator.Up(ctx)
	require.NoError(t, err, "failed to apply migrations")

	return db, dialect
}

// CleanupDB closes db, logging rather than failing on error.
func CleanupDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}
}

// WithTx runs fn within a transaction that is rolled back afterwards, so
// changes made through tx never persist.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				t.Logf("Warning: failed to rollback transaction after panic: %v", rbErr)
			}
			// ALLOW-PANIC
			panic(r)
		}
		// sql.ErrTxDone is expected if fn committed or rolled back itself
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}
