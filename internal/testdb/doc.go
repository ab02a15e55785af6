// Package testdb provides database fixtures for tests.
//
// By default every call to New opens a fresh SQLite database in the test's
// temporary directory and applies the embedded migrations, so tests need no
// external services and never share state. When FOLIO_TEST_DATABASE_URL
// is set, NewPostgres connects to that PostgreSQL database instead; tests
// using it should isolate their changes with WithTx.
//
// # Basic Usage
//
//	func TestMyFeature(t *testing.T) {
//	    db, dialect := testdb.New(t)
//	    resources := sqlstore.NewResourceStore(db, registry, schema, dialect, nil)
//
//	    // No cleanup needed: the database is removed with t.TempDir.
//	}
package testdb
