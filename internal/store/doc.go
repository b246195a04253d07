// Package store holds the persistence primitives shared by the item store
// implementations: common errors, the DBTX abstraction over *sql.DB and
// *sql.Tx, a transaction helper, and an in-memory store used by tests and
// by single-process deployments.
package store
