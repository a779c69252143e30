package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/lanatus/internal/dberr"
	"github.com/roach88/lanatus/internal/engine"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/idcache"
	"github.com/roach88/lanatus/internal/querysql"
	"github.com/roach88/lanatus/internal/session"
)

// ErrZeroCredit is returned by Credit for an amount of zero.
var ErrZeroCredit = errors.New("credit amount must not be zero")

var selectColumns = []string{colPlayerID, colMelonsCount, colLastRank}

// Repository reads and writes accounts.
type Repository struct {
	engine   *engine.Engine
	compiler *querysql.SQLCompiler
	cache    *engine.Repository[uuid.UUID, *Snapshot]
}

// NewRepository creates an account repository on e.
func NewRepository(e *engine.Engine, opts ...idcache.Option[uuid.UUID, *Snapshot]) *Repository {
	r := &Repository{
		engine:   e,
		compiler: querysql.NewSQLCompiler(),
	}
	r.cache = engine.NewRepository(e, r.load, opts...).WithDefault(DefaultSnapshot)
	return r
}

// Find returns the cached account of a player. A player without a stored
// account gets the default snapshot.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	return r.cache.Find(ctx, id)
}

// Refresh rereads an account, replacing the cached snapshot.
func (r *Repository) Refresh(ctx context.Context, s *Snapshot) (*Snapshot, error) {
	return r.cache.Refresh(ctx, s.PlayerID)
}

// ClearCache drops every cached snapshot.
func (r *Repository) ClearCache() {
	r.cache.ClearCache()
}

// FindMutable reads a writable copy of an account, bypassing the cache. A
// player without a stored account gets an unsaved default copy.
func (r *Repository) FindMutable(ctx context.Context, id uuid.UUID) (*Mutable, error) {
	s, err := r.cache.FindUncached(ctx, id)
	switch {
	case dberr.IsNotFound(err):
		return newMutable(id), nil
	case err != nil:
		return nil, err
	}
	return mutableFrom(s), nil
}

// Save writes the local changes of m. It fails with a conflict error if the
// account was deleted since m was read.
func (r *Repository) Save(ctx context.Context, m *Mutable) error {
	_, err := r.cache.Save(ctx, m)
	return err
}

// Credit adds amount melons to a player's account and records it in the
// ledger, in one transaction. It returns the ledger entry id.
func (r *Repository) Credit(ctx context.Context, id uuid.UUID, amount int64, comment string) (int64, error) {
	if amount == 0 {
		e := dberr.Usage(ErrZeroCredit, "nothing to credit")
		e.Table = LedgerTable
		e.ID = id.String()
		return 0, e
	}

	var ledgerID int64
	err := r.engine.WithTransaction(ctx, func(ctx context.Context, _ *session.Session) error {
		m, err := r.FindMutable(ctx, id)
		if err != nil {
			return err
		}
		m.ModifyMelonsCount(amount)
		if err := r.Save(ctx, m); err != nil {
			return err
		}

		st, err := r.compiler.Compile(LedgerTable, querysql.Insert,
			holder.NewPending(colPlayerID, id.String()),
			holder.NewPending(colDelta, amount),
			holder.NewPending(colComment, comment),
		)
		if err != nil {
			return err
		}
		res, err := r.engine.Exec(ctx, st)
		if err != nil {
			return err
		}
		st.Commit()

		ledgerID = res.LastInsertID
		return nil
	})

	// Save invalidated before commit; a concurrent Find may have cached the
	// old row since then.
	r.cache.Invalidate(id)

	if err != nil {
		return 0, err
	}
	return ledgerID, nil
}

func (r *Repository) load(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	st, err := r.compiler.CompileSelect(Table, selectColumns, holder.NewIdentity(colPlayerID, id.String()))
	if err != nil {
		return nil, err
	}

	var s *Snapshot
	n, err := r.engine.Query(ctx, st, func(rows *sql.Rows) error {
		var (
			rawID string
			snap  Snapshot
		)
		if err := rows.Scan(&rawID, &snap.MelonsCount, &snap.LastRank); err != nil {
			return err
		}
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return fmt.Errorf("invalid player id %q: %w", rawID, err)
		}
		snap.PlayerID = parsed
		s = &snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, dberr.NotFound(Table, id.String())
	}
	return s, nil
}
