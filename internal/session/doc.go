// Package session provides reference-counted, transaction-scoped database
// sessions shared across nested units of work.
//
// A Session owns exactly one physical connection. Call sites that take part
// in the same unit of work each Join the session and Close the returned Lease
// when done, usually with defer. BeginTx joins and, if no transaction is open
// yet, switches the connection into manual-commit mode. Nested BeginTx calls
// share the one physical transaction; there are no savepoints.
//
// # States
//
//	FRESH   refCount == 0, no transaction
//	ACTIVE  refCount >= 1
//	IN-TX   refCount >= 1, transaction open
//	CLOSED  terminal; every call fails with ErrClosed
//
// Releasing the last lease returns the session to FRESH. If a transaction is
// still open at that point the session rolls back, closes, and the release
// reports ErrUnfinishedTransaction: an uncommitted transaction never vanishes
// silently.
//
// # Concurrency
//
// The reference counter and the transaction flag are atomics. There is a
// known, accepted race in BeginTx between claiming the transaction flag and
// disabling autocommit: a concurrent caller may observe an open transaction
// before the connection is in manual-commit mode. Sessions are meant to be
// used by a single active goroutine at a time.
//
// Commit, rollback and statement execution are blocking driver calls. Once
// started they are not cancellable by this package; timeouts belong to the
// driver.
package session
