// Package sqlstore implements the work item store on database/sql.
//
// Two dialects are supported: PostgreSQL through the pgx stdlib driver and
// SQLite through mattn/go-sqlite3. Queries are written once with "?"
// placeholders and rebound per dialect. The schema for each dialect is
// embedded and applied with goose.
package sqlstore
