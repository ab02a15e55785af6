package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Options tune the connection pool.
type Options struct {
	MaxOpenConns int
}

// Open connects to the database behind driver and dsn, verifies the
// connection and returns the pool with its dialect.
//
// SQLite DSNs should enable foreign keys, e.g.
// "file:folio.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)".
func Open(ctx context.Context, driver, dsn string, opts Options) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to ping %s database: %w", dialect.Name(), err)
	}
	return db, dialect, nil
}
