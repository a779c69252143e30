package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/lanatus/internal/session"
)

// errAutoCommit is returned by Commit and Rollback in autocommit mode.
var errAutoCommit = errors.New("cannot commit or roll back when autocommit is enabled")

// conn adapts a *sql.Conn to session.Conn.
//
// With autocommit off, the first statement begins a transaction. It is
// started with a context that is never cancelled, so it lives until Commit
// or Rollback and not until the first caller's context ends.
type conn struct {
	l *slog.Logger

	mu         sync.Mutex
	c          *sql.Conn
	tx         *sql.Tx
	autoCommit bool
}

func newConn(c *sql.Conn, l *slog.Logger) *conn {
	return &conn{
		l:          l,
		c:          c,
		autoCommit: true,
	}
}

// execer is implemented by both *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// target returns where the next statement runs, beginning a transaction if
// autocommit is off and none is open yet.
func (c *conn) target(ctx context.Context) (execer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoCommit {
		return c.c, nil
	}
	if c.tx == nil {
		tx, err := c.c.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		c.l.Debug("transaction started")
		c.tx = tx
	}
	return c.tx, nil
}

// ExecContext implements session.Conn.
func (c *conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t, err := c.target(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.l.DebugContext(ctx, ">>> "+query, slog.Any("args", args))

	res, err := t.ExecContext(ctx, query, args...)

	// to differentiate between 0 and unknown
	ra := int64(-1)
	if res != nil {
		if n, raErr := res.RowsAffected(); raErr == nil {
			ra = n
		}
	}

	c.l.DebugContext(ctx, "<<< "+query,
		slog.Any("args", args), slog.Duration("time", time.Since(start)),
		slog.Int64("rows", ra), slog.Any("error", err),
	)

	return res, err
}

// QueryContext implements session.Conn.
func (c *conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	t, err := c.target(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.l.DebugContext(ctx, ">>> "+query, slog.Any("args", args))

	rows, err := t.QueryContext(ctx, query, args...)

	c.l.DebugContext(ctx, "<<< "+query,
		slog.Any("args", args), slog.Duration("time", time.Since(start)), slog.Any("error", err),
	)

	return rows, err
}

// AutoCommit implements session.Conn.
func (c *conn) AutoCommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.autoCommit
}

// SetAutoCommit implements session.Conn.
// Turning autocommit on commits a pending transaction.
func (c *conn) SetAutoCommit(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if on == c.autoCommit {
		return nil
	}
	if on && c.tx != nil {
		if err := c.endLocked(true); err != nil {
			return err
		}
	}
	c.autoCommit = on
	return nil
}

// Commit implements session.Conn.
// Committing with no statement executed yet is a no-op.
func (c *conn) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoCommit {
		return errAutoCommit
	}
	return c.endLocked(true)
}

// Rollback implements session.Conn.
func (c *conn) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoCommit {
		return errAutoCommit
	}
	return c.endLocked(false)
}

// Close implements session.Conn.
// A pending transaction is rolled back and the connection returned to the pool.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rbErr error
	if c.tx != nil {
		rbErr = c.endLocked(false)
	}
	return errors.Join(rbErr, c.c.Close())
}

func (c *conn) endLocked(commit bool) error {
	if c.tx == nil {
		return nil
	}

	tx := c.tx
	c.tx = nil

	if commit {
		c.l.Debug("transaction committed")
		return tx.Commit()
	}
	c.l.Debug("transaction rolled back")
	return tx.Rollback()
}

// check interfaces
var _ session.Conn = (*conn)(nil)
