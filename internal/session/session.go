package session

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	"github.com/roach88/lanatus/internal/dberr"
)

var (
	// ErrClosed is returned by every operation on a closed session.
	ErrClosed = errors.New("scoped session already closed")

	// ErrNoTransaction is returned when committing or rolling back without an
	// open transaction.
	ErrNoTransaction = errors.New("transaction already ended or not yet started")

	// ErrUnfinishedTransaction is returned when the last reference is released
	// while a transaction is still open. The transaction has been rolled back.
	ErrUnfinishedTransaction = errors.New("transaction was not completed in last reference, rolled back forcefully")

	// ErrInUse is returned when disposing a session that still has references.
	ErrInUse = errors.New("scoped session still referenced")
)

// Conn is the physical connection a session wraps.
//
// It follows JDBC connection semantics: in autocommit mode every statement
// commits on its own; after SetAutoCommit(false) statements accumulate in a
// transaction that Commit or Rollback ends. Switching autocommit back on
// commits a pending transaction.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	AutoCommit() bool
	SetAutoCommit(ctx context.Context, on bool) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Session is a reference-counted wrapper around one connection, optionally
// holding an open transaction.
type Session struct {
	conn Conn

	refCount atomic.Int32
	txOpen   atomic.Bool
	closed   atomic.Bool

	// prevAutoCommit is the autocommit flag saved by BeginTx.
	prevAutoCommit bool
}

// New wraps a freshly acquired connection.
// Panics if conn is nil.
func New(conn Conn) *Session {
	if conn == nil {
		panic("session: nil connection")
	}
	return &Session{conn: conn}
}

// Join adds a reference. Every successful Join must be matched by closing
// the returned Lease.
func (s *Session) Join() (*Lease, error) {
	if err := s.checkNotClosed("JOIN"); err != nil {
		return nil, err
	}
	s.refCount.Add(1)
	return &Lease{s: s}, nil
}

// BeginTx joins the session and opens a transaction if none is open.
// If one is already open this is only a Join; the caller shares the
// transaction of the outer scope.
//
// A driver failure while switching autocommit force-closes the session.
func (s *Session) BeginTx(ctx context.Context) (*Lease, error) {
	lease, err := s.Join()
	if err != nil {
		return nil, err
	}

	// note: minor race here, see package documentation
	if s.txOpen.CompareAndSwap(false, true) {
		s.prevAutoCommit = s.conn.AutoCommit()
		if s.prevAutoCommit {
			if err := s.conn.SetAutoCommit(ctx, false); err != nil {
				s.txOpen.Store(false)
				_ = s.closeInternal()
				return nil, dberr.Driver("BEGIN", err)
			}
		}
	}

	return lease, nil
}

// Commit commits the open transaction and restores the saved autocommit flag.
// A driver failure force-closes the session and is returned.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.checkActive("COMMIT"); err != nil {
		return err
	}

	if err := s.conn.Commit(ctx); err != nil {
		s.abort(ctx)
		return dberr.Driver("COMMIT", err)
	}
	if err := s.endTransaction(ctx); err != nil {
		_ = s.closeInternal()
		return dberr.Driver("COMMIT", err)
	}
	return nil
}

// RollbackAndClose rolls back the open transaction, restores autocommit and
// closes the session regardless of remaining references. Other holders'
// subsequent calls fail with ErrClosed.
func (s *Session) RollbackAndClose(ctx context.Context) error {
	if err := s.checkActive("ROLLBACK"); err != nil {
		return err
	}

	rbErr := s.conn.Rollback(ctx)
	endErr := s.endTransaction(ctx)
	closeErr := s.closeInternal()

	if err := errors.Join(rbErr, endErr, closeErr); err != nil {
		return dberr.Driver("ROLLBACK", err)
	}
	return nil
}

// CommitIfLast commits only if the caller holds the last outstanding
// reference. Otherwise the outer scope commits.
func (s *Session) CommitIfLast(ctx context.Context) error {
	if err := s.checkNotClosed("COMMIT"); err != nil {
		return err
	}
	if s.refCount.Load() <= 1 {
		return s.Commit(ctx)
	}
	return nil
}

// CommitIfLastAndChanged is CommitIfLast, but does nothing if no transaction
// was ever begun.
func (s *Session) CommitIfLastAndChanged(ctx context.Context) error {
	if err := s.checkNotClosed("COMMIT"); err != nil {
		return err
	}
	if !s.HasTransaction() {
		return nil
	}
	return s.CommitIfLast(ctx)
}

// ExecContext executes a statement on the session's connection.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := s.checkNotClosed("EXEC"); err != nil {
		return nil, err
	}
	return s.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the session's connection.
// Callers are responsible for closing the returned rows.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := s.checkNotClosed("QUERY"); err != nil {
		return nil, err
	}
	return s.conn.QueryContext(ctx, query, args...)
}

// Dispose closes an idle session and releases its connection.
// Disposing a closed session is a no-op.
func (s *Session) Dispose() error {
	if s.closed.Load() {
		return nil
	}
	if s.HasReferences() {
		e := dberr.Usage(ErrInUse, "cannot dispose a referenced session")
		e.Statement = "CLOSE"
		return e
	}
	if err := s.closeInternal(); err != nil {
		return dberr.Driver("CLOSE", err)
	}
	return nil
}

// RefCount returns the number of outstanding references.
func (s *Session) RefCount() int {
	return int(s.refCount.Load())
}

// HasReferences reports whether any lease is outstanding.
func (s *Session) HasReferences() bool {
	return s.refCount.Load() != 0
}

// AcceptsFurtherReferences reports whether Join can succeed.
func (s *Session) AcceptsFurtherReferences() bool {
	return !s.closed.Load()
}

// HasTransaction reports whether a transaction is open.
func (s *Session) HasTransaction() bool {
	return s.txOpen.Load()
}

// Closed reports whether the session is closed.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Conn returns the raw connection used by this session.
func (s *Session) Conn() Conn {
	return s.conn
}

// release drops one reference. At zero the session becomes idle, unless a
// transaction is still open: then it is rolled back and closed, and
// ErrUnfinishedTransaction is returned.
func (s *Session) release() error {
	if s.refCount.Add(-1) > 0 {
		return nil
	}
	s.refCount.Store(0)

	if s.closed.Load() || !s.txOpen.Load() {
		return nil
	}

	ctx := context.Background()
	usage := dberr.Usage(ErrUnfinishedTransaction, "last reference released with an open transaction")
	usage.Statement = "CLOSE"
	if err := s.RollbackAndClose(ctx); err != nil {
		return errors.Join(usage, err)
	}
	return usage
}

// endTransaction clears the transaction flag and restores autocommit.
func (s *Session) endTransaction(ctx context.Context) error {
	s.txOpen.Store(false)
	if s.prevAutoCommit {
		return s.conn.SetAutoCommit(ctx, true)
	}
	return nil
}

// abort rolls back after a failed commit and closes the session.
func (s *Session) abort(ctx context.Context) {
	_ = s.conn.Rollback(ctx)
	_ = s.endTransaction(ctx)
	_ = s.closeInternal()
}

func (s *Session) closeInternal() error {
	s.refCount.Store(0)
	s.txOpen.Store(false)
	if s.closed.CompareAndSwap(false, true) {
		return s.conn.Close()
	}
	return nil
}

func (s *Session) checkNotClosed(stmt string) error {
	if s.closed.Load() {
		e := dberr.Usage(ErrClosed, "session used after close")
		e.Statement = stmt
		return e
	}
	return nil
}

func (s *Session) checkActive(stmt string) error {
	if err := s.checkNotClosed(stmt); err != nil {
		return err
	}
	if !s.txOpen.Load() {
		e := dberr.Usage(ErrNoTransaction, "no open transaction")
		e.Statement = stmt
		return e
	}
	return nil
}

// Lease is one reference to a session. Close releases it exactly once;
// further calls are no-ops.
type Lease struct {
	s        *Session
	released atomic.Bool
}

// Session returns the leased session.
func (l *Lease) Session() *Session {
	return l.s
}

// Close releases the reference. See Session for what happens when it is
// the last one.
func (l *Lease) Close() error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	return l.s.release()
}
