// Package engine runs differential writes and cached reads against scoped
// sessions.
//
// ARCHITECTURE:
//
// Session propagation:
// WithSession and WithTransaction store the active session in the context.
// Nested calls on a derived context join it instead of acquiring a new
// connection, so unrelated call sites share one connection and one
// transaction. The scope that acquired the session disposes of it when it
// exits.
//
// Transactions:
// The scope that begins a transaction commits it. Nested WithTransaction
// scopes join it; an error in any scope rolls it back and closes the session,
// so the outer scope fails too. Every later engine call on that context
// fails with session.ErrClosed; use Detach to start an independent unit of
// work from it.
//
// Statement providers:
// Exec runs a compiled querysql.Statement with the plain provider (rows
// affected) or, when Statement.ReturnKeys is set, the generated-keys provider
// (last insert id).
//
// Repositories:
// Repository pairs a loader with an identity cache. Find returns the cached
// instance, Refresh replaces it, Save compiles the entity's dirty holders into
// one UPDATE or INSERT and reports a conflict when an UPDATE matches no row.
//
// The engine never logs; every failure is returned to the caller.
package engine
