// Package testdb opens migrated databases for store tests.
//
// SQLite databases live in a per-test temporary directory, so tests using
// them may run in parallel. The Postgres database is shared: it is only
// used when BOT_TEST_DB_URL or DATABASE_URL is set, and OpenPostgres empties
// the work_items table before returning, so those tests must not call
// t.Parallel.
//
//	func TestItemStore(t *testing.T) {
//	    db, dialect := testdb.OpenSQLite(t)
//	    items := sqlstore.NewItemStore(db, dialect, logger)
//	    ...
//	}
package testdb
