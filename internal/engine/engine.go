package engine

import (
	"context"
	"errors"

	"github.com/roach88/lanatus/internal/session"
)

// Provider hands out fresh sessions, each owning one connection.
// Implemented by store.Store.
type Provider interface {
	Acquire(ctx context.Context) (*session.Session, error)
}

// Func is the unit of work run inside a scope. ctx carries the session, so
// nested engine calls made with it join the same session.
type Func func(ctx context.Context, s *session.Session) error

// Engine opens scoped sessions and executes statements on them.
// Safe for concurrent use; a single session is not.
type Engine struct {
	provider Provider
	metrics  *Metrics
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithMetrics records session activity in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine that acquires sessions from p.
func New(p Provider, opts ...Option) *Engine {
	e := &Engine{provider: p}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type sessionKey struct{}

// SessionFrom returns the session carried by ctx, if any.
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s, s != nil
}

// Detach returns a context that carries no session, so engine calls made
// with it run in a unit of work of their own instead of joining the caller's.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, (*session.Session)(nil))
}

// WithSession runs fn with a reference to the context's session, acquiring a
// new one if ctx carries none. A closed session in ctx is an ErrClosed usage
// error. The reference is released on every exit path.
func (e *Engine) WithSession(ctx context.Context, fn Func) (err error) {
	ctx, sc, err := e.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.close(sc)) }()

	return fn(ctx, sc.s)
}

// WithTransaction runs fn inside a transaction.
//
// Like WithSession it fails with ErrClosed if ctx carries a closed session,
// e.g. one a nested scope rolled back.
//
// If the context's session already has a transaction open, fn joins it and
// the outer scope commits. Otherwise this scope begins the transaction and
// commits it when fn succeeds. If fn fails the transaction is rolled back and
// the session closed, and fn's error is returned.
func (e *Engine) WithTransaction(ctx context.Context, fn Func) (err error) {
	ctx, sc, err := e.open(ctx, true)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.close(sc)) }()

	if err := fn(ctx, sc.s); err != nil {
		if sc.s.HasTransaction() {
			e.metrics.rollback()
			return errors.Join(err, sc.s.RollbackAndClose(ctx))
		}
		return err
	}

	if !sc.began {
		return nil
	}
	if err := sc.s.Commit(ctx); err != nil {
		return err
	}
	e.metrics.commit()
	return nil
}

// scope is one WithSession or WithTransaction activation.
type scope struct {
	s     *session.Session
	lease *session.Lease

	// owned is set when this scope acquired the session.
	owned bool

	// began is set when this scope opened the transaction.
	began bool
}

func (e *Engine) open(ctx context.Context, tx bool) (context.Context, *scope, error) {
	s, ok := SessionFrom(ctx)
	owned := false
	if !ok {
		var err error
		if s, err = e.provider.Acquire(ctx); err != nil {
			return ctx, nil, err
		}
		e.metrics.open()
		owned = true
		ctx = context.WithValue(ctx, sessionKey{}, s)
	}

	sc := &scope{s: s, owned: owned}

	var err error
	if tx {
		sc.began = !s.HasTransaction()
		sc.lease, err = s.BeginTx(ctx)
	} else {
		sc.lease, err = s.Join()
	}
	if err != nil {
		if owned {
			_ = s.Dispose()
			e.metrics.dispose()
		}
		return ctx, nil, err
	}

	return ctx, sc, nil
}

func (e *Engine) close(sc *scope) error {
	err := sc.lease.Close()
	if errors.Is(err, session.ErrUnfinishedTransaction) {
		e.metrics.forcedRollback()
	}

	if sc.owned {
		err = errors.Join(err, sc.s.Dispose())
		e.metrics.dispose()
	}
	return err
}
