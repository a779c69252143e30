package engine

import (
	"context"
	"fmt"

	"github.com/roach88/lanatus/internal/dberr"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/idcache"
	"github.com/roach88/lanatus/internal/querysql"
	"github.com/roach88/lanatus/internal/session"
)

// Writable is a mutable entity Repository.Save can persist.
type Writable[K comparable] interface {
	// Key identifies the entity in the identity cache.
	Key() K

	// Table is the table the entity is stored in.
	Table() string

	// Holders returns every field holder, predicates included.
	Holders() []holder.Source

	// Persisted reports whether a row exists for the entity.
	Persisted() bool

	// MarkPersisted records that a row now exists.
	MarkPersisted()
}

// Loader reads one entity. It runs inside a session carried by ctx and
// reports a missing row with a dberr.NotFound error.
type Loader[K comparable, E any] func(ctx context.Context, id K) (E, error)

// Repository is a cached view of one entity type.
//
// Find returns the same instance for an id until it is invalidated, so
// callers must treat E as immutable. Writes go through Save with a separate
// mutable representation.
type Repository[K comparable, E any] struct {
	engine   *Engine
	compiler *querysql.SQLCompiler
	cache    *idcache.Cache[K, E]
	load     Loader[K, E]

	// def builds the entity of an id without a row; nil keeps NOT_FOUND.
	def func(K) E
}

// NewRepository creates a repository reading entities with load.
func NewRepository[K comparable, E any](e *Engine, load Loader[K, E], opts ...idcache.Option[K, E]) *Repository[K, E] {
	return &Repository[K, E]{
		engine:   e,
		compiler: querysql.NewSQLCompiler(),
		cache:    idcache.New(opts...),
		load:     load,
	}
}

// WithDefault makes Find and Refresh answer a NOT_FOUND load with def(id),
// which is cached like a stored entity. FindUncached still reports NOT_FOUND.
func (r *Repository[K, E]) WithDefault(def func(K) E) *Repository[K, E] {
	r.def = def
	return r
}

// Engine returns the engine the repository runs on.
func (r *Repository[K, E]) Engine() *Engine {
	return r.engine
}

// Find returns the cached entity for id, loading it on a miss.
func (r *Repository[K, E]) Find(ctx context.Context, id K) (E, error) {
	return r.cache.GetOrCompute(ctx, id, r.fetch)
}

// Refresh reloads the entity for id, replacing the cached instance. On
// failure the id is left uncached.
func (r *Repository[K, E]) Refresh(ctx context.Context, id K) (E, error) {
	return r.cache.Refresh(ctx, id, r.fetch)
}

// FindUncached loads the stored entity for id without consulting or filling
// the cache. A missing row is a NOT_FOUND error even with WithDefault, so
// callers can tell a new entity from a stored one.
func (r *Repository[K, E]) FindUncached(ctx context.Context, id K) (E, error) {
	return r.fetchStored(ctx, id)
}

// Invalidate drops the cached entity for id.
func (r *Repository[K, E]) Invalidate(id K) {
	r.cache.Invalidate(id)
}

// ClearCache drops every cached entity.
func (r *Repository[K, E]) ClearCache() {
	r.cache.Clear()
}

// Save writes the dirty fields of w: an UPDATE scoped by its predicate
// holders if it is persisted, an INSERT otherwise. A clean entity writes
// nothing.
//
// An UPDATE that matches no row fails with a conflict error and leaves every
// holder dirty. On success the holders are marked written, w is marked
// persisted and the cached entity is invalidated.
func (r *Repository[K, E]) Save(ctx context.Context, w Writable[K]) (Result, error) {
	mode := querysql.Insert
	if w.Persisted() {
		mode = querysql.Update
	}

	st, err := r.compiler.Compile(w.Table(), mode, w.Holders()...)
	if err != nil {
		return Result{}, err
	}
	if st.Empty() {
		return Result{}, nil
	}

	res, err := r.engine.Exec(ctx, st)
	if err != nil {
		return Result{}, err
	}
	if mode == querysql.Update && res.RowsAffected == 0 {
		r.engine.metrics.conflict()
		r.cache.Invalidate(w.Key())
		return Result{}, dberr.Conflict(st.Table, fmt.Sprint(w.Key()), st.Op)
	}

	st.Commit()
	w.MarkPersisted()
	r.cache.Invalidate(w.Key())

	return res, nil
}

func (r *Repository[K, E]) fetch(ctx context.Context, id K) (E, error) {
	v, err := r.fetchStored(ctx, id)
	if r.def != nil && dberr.IsNotFound(err) {
		return r.def(id), nil
	}
	return v, err
}

func (r *Repository[K, E]) fetchStored(ctx context.Context, id K) (E, error) {
	var v E
	err := r.engine.WithSession(ctx, func(ctx context.Context, _ *session.Session) error {
		var err error
		v, err = r.load(ctx, id)
		return err
	})
	return v, err
}
