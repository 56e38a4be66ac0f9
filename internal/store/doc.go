// Package store opens the databases searches run against.
//
// A Store wraps a *sql.DB and satisfies querysql.Executor. Every statement
// it runs gets an OpenTelemetry span, a Prometheus observation and a debug
// log line.
//
// # SQLite
//
// The driver is chosen at build time: modernc.org/sqlite by default, or
// github.com/mattn/go-sqlite3 with the cgo_sqlite tag. Open configures:
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// and migrates the qsearch_indexes table through PRAGMA user_version.
// EnsureFullTextIndex creates an external-content FTS5 table kept in sync
// by triggers, the shape internal/fts searches.
//
// # PostgreSQL
//
// OpenPostgres connects through pgx's database/sql driver. PostgreSQL
// full-text search needs no index table; the fts provider computes
// tsvectors in the statement.
package store
