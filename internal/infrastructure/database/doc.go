// Package database provides the SQLite connection layer for Hearth Core.
//
// It wraps database/sql with WAL-mode setup, busy-timeout handling,
// embedded migrations, and health checking. Repositories in the domain
// packages receive the underlying *sql.DB and own their queries.
package database
