package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/phrazzld/folio-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator(t *testing.T) {
	ctx := context.Background()
	dsn := testdb.SQLiteDSN(filepath.Join(t.TempDir(), "migrate.db"))
	db, dialect, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn, sqlstore.Options{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { testdb.CleanupDB(t, db) })

	m, err := sqlstore.NewMigrator(db, dialect, nil)
	require.NoError(t, err)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, applied)

	applied, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied, "up is idempotent")

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %d should be applied", s.Version)
	}

	rolledBack, err := m.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rolledBack)

	version, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = db.ExecContext(ctx, "SELECT 1 FROM comments")
	assert.Error(t, err, "comments table should be dropped")
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := sqlstore.Open(context.Background(), "mysql", "root@/folio", sqlstore.Options{})
	assert.Error(t, err)
}
