// Package sqlstore implements the store contracts on database/sql. It
// serves PostgreSQL through pgx and SQLite through modernc.org/sqlite from
// the same code: every resource type maps onto a table and every
// relationship onto a foreign key or a pivot table, described by a Schema.
// Schema migrations are embedded and applied with goose.
package sqlstore
