// Package store provides the database/sql connection provider behind scoped
// sessions.
//
// Three drivers are supported, all using ? placeholders so the write compiler
// needs no dialect layer:
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo)
//   - sqlite:  modernc.org/sqlite (pure Go)
//   - mysql:   github.com/go-sql-driver/mysql
//
// Every session gets its own pooled connection wrapped in an adapter with
// JDBC autocommit semantics: in autocommit mode statements run directly on
// the connection; with autocommit off the first statement begins a database
// transaction that Commit or Rollback ends.
//
// # SQLite Configuration
//
// Pragmas are set per connection through the DSN:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce referential integrity
//
// Statements are logged at debug level, before (">>>") and after ("<<<")
// execution, with arguments, affected rows and duration.
package store
