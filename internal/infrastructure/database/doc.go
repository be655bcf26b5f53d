// Package database provides SQLite persistence for Warden Core.
//
// It wraps database/sql with connection configuration suited to an
// embedded single-writer deployment (WAL mode, busy timeout, one open
// connection) and a small embedded-migration runner. Credentials and
// audit events are the only tables; see the migrations directory for
// the schema.
package database
