package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lanatus/internal/dberr"
	"github.com/roach88/lanatus/internal/querysql"
	"github.com/roach88/lanatus/internal/session"
)

// Result is the outcome of an executed write.
type Result struct {
	// RowsAffected is reported by the plain provider.
	RowsAffected int64

	// LastInsertID is reported by the generated-keys provider.
	LastInsertID int64
}

// statementProvider executes a compiled statement on a session.
type statementProvider func(ctx context.Context, s *session.Session, st querysql.Statement) (Result, error)

// Exec runs a compiled write in the context's session, or in a short-lived
// autocommit session if ctx carries none. An empty statement is a no-op.
//
// Exec does not call st.Commit; the caller confirms the snapshots once the
// write is known to have had the intended effect.
func (e *Engine) Exec(ctx context.Context, st querysql.Statement) (Result, error) {
	if st.Empty() {
		return Result{}, nil
	}

	provider := plainProvider
	if st.ReturnKeys {
		provider = generatedKeysProvider
	}

	var res Result
	err := e.WithSession(ctx, func(ctx context.Context, s *session.Session) error {
		var err error
		res, err = provider(ctx, s, st)
		return err
	})
	return res, err
}

// Query runs a compiled SELECT in the context's session and calls scan once
// per row. It returns the number of rows scanned.
func (e *Engine) Query(ctx context.Context, st querysql.Statement, scan func(rows *sql.Rows) error) (int, error) {
	if st.Empty() {
		return 0, nil
	}

	var n int
	err := e.WithSession(ctx, func(ctx context.Context, s *session.Session) error {
		rows, err := s.QueryContext(ctx, st.SQL, st.Params...)
		if err != nil {
			return statementError(st, err)
		}
		defer rows.Close()

		for rows.Next() {
			if err := scan(rows); err != nil {
				return fmt.Errorf("scan %s row: %w", st.Table, err)
			}
			n++
		}
		if err := rows.Err(); err != nil {
			return statementError(st, err)
		}
		return nil
	})
	return n, err
}

func plainProvider(ctx context.Context, s *session.Session, st querysql.Statement) (Result, error) {
	res, err := s.ExecContext(ctx, st.SQL, st.Params...)
	if err != nil {
		return Result{}, statementError(st, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, statementError(st, err)
	}
	return Result{RowsAffected: n}, nil
}

func generatedKeysProvider(ctx context.Context, s *session.Session, st querysql.Statement) (Result, error) {
	res, err := s.ExecContext(ctx, st.SQL, st.Params...)
	if err != nil {
		return Result{}, statementError(st, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Result{}, statementError(st, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, statementError(st, err)
	}
	return Result{RowsAffected: n, LastInsertID: id}, nil
}

// statementError wraps a failure of st. Usage errors from the session pass
// through unchanged.
func statementError(st querysql.Statement, err error) error {
	if dberr.IsUsage(err) {
		return err
	}
	e := dberr.Driver(st.Op, err)
	e.Table = st.Table
	return e
}
