package engine

import (
	"context"
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lanatus/internal/dberr"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/querysql"
	"github.com/roach88/lanatus/internal/session"
)

// counterView is the immutable cached representation.
type counterView struct {
	id    string
	n     int64
	label string
}

// counter is the mutable representation.
type counter struct {
	id        *holder.Identity[string]
	n         *holder.Delta[int64]
	label     *holder.Value[string]
	persisted bool
}

func newCounter(id string) *counter {
	return &counter{
		id:    holder.NewIdentity("id", id),
		n:     holder.NewDelta[int64]("n", 0),
		label: holder.NewPending("label", ""),
	}
}

func loadedCounter(v counterView) *counter {
	return &counter{
		id:        holder.NewIdentity("id", v.id),
		n:         holder.NewDelta("n", v.n),
		label:     holder.NewValue("label", v.label),
		persisted: true,
	}
}

func (c *counter) Key() string     { return c.id.Get() }
func (c *counter) Table() string   { return "counter" }
func (c *counter) Persisted() bool { return c.persisted }
func (c *counter) MarkPersisted()  { c.persisted = true }

func (c *counter) Holders() []holder.Source {
	return []holder.Source{c.id, c.n, c.label}
}

func newCounterRepo(t *testing.T, e *Engine) *Repository[string, *counterView] {
	t.Helper()
	compiler := querysql.NewSQLCompiler()

	load := func(ctx context.Context, id string) (*counterView, error) {
		st, err := compiler.CompileSelect("counter", []string{"id", "n", "label"}, holder.NewIdentity("id", id))
		if err != nil {
			return nil, err
		}

		var v *counterView
		n, err := e.Query(ctx, st, func(rows *sql.Rows) error {
			v = &counterView{}
			return rows.Scan(&v.id, &v.n, &v.label)
		})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, dberr.NotFound("counter", id)
		}
		return v, nil
	}

	return NewRepository(e, load)
}

func TestRepository_SaveInsertsNewEntity(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e)
	ctx := context.Background()

	c := newCounter("a")
	c.n.Add(5)
	c.label.Set("first")

	_, err := repo.Save(ctx, c)
	require.NoError(t, err)
	assert.True(t, c.Persisted())
	assert.False(t, c.n.Dirty())
	assert.False(t, c.label.Dirty())

	v, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, &counterView{id: "a", n: 5, label: "first"}, v)
}

func TestRepository_FindReturnsSameInstance(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e)
	ctx := context.Background()

	_, err := repo.Save(ctx, newCounter("a"))
	require.NoError(t, err)

	first, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	second, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, first, second)

	refreshed, err := repo.Refresh(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, first, refreshed)
	assert.Equal(t, first, refreshed)

	current, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, refreshed, current)
}

func TestRepository_FindUncachedBypassesCache(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e)
	ctx := context.Background()

	_, err := repo.Save(ctx, newCounter("a"))
	require.NoError(t, err)

	cached, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	uncached, err := repo.FindUncached(ctx, "a")
	require.NoError(t, err)

	assert.NotSame(t, cached, uncached)
	again, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, cached, again)
}

func TestRepository_FindMissing(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e)

	_, err := repo.Find(context.Background(), "nobody")
	assert.True(t, dberr.IsNotFound(err))
}

func TestRepository_WithDefault(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e).WithDefault(func(id string) *counterView {
		return &counterView{id: id, label: "unset"}
	})
	ctx := context.Background()

	v, err := repo.Find(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, &counterView{id: "nobody", label: "unset"}, v)

	again, err := repo.Find(ctx, "nobody")
	require.NoError(t, err)
	assert.Same(t, v, again, "default entity must be cached")

	_, err = repo.FindUncached(ctx, "nobody")
	assert.True(t, dberr.IsNotFound(err), "FindUncached must report the missing row")

	_, err = repo.Save(ctx, newCounter("nobody"))
	require.NoError(t, err)
	stored, err := repo.FindUncached(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, &counterView{id: "nobody"}, stored)
}

func TestRepository_SaveUpdatesWithDelta(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e)
	ctx := context.Background()

	_, err := repo.Save(ctx, newCounter("a"))
	require.NoError(t, err)
	before, err := repo.Find(ctx, "a")
	require.NoError(t, err)

	// two independent mutable copies add concurrently; neither overwrites
	m1 := loadedCounter(*before)
	m2 := loadedCounter(*before)
	m1.n.Add(3)
	m2.n.Add(4)

	res, err := repo.Save(ctx, m1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	_, err = repo.Save(ctx, m2)
	require.NoError(t, err)

	after, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, before, after, "save must invalidate the cached instance")
	assert.Equal(t, int64(7), after.n)
}

func TestRepository_SaveCleanEntityWritesNothing(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e)
	ctx := context.Background()

	_, err := repo.Save(ctx, newCounter("a"))
	require.NoError(t, err)
	v, err := repo.Find(ctx, "a")
	require.NoError(t, err)

	res, err := repo.Save(ctx, loadedCounter(*v))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	again, err := repo.Find(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, v, again, "a no-op save must not invalidate")
}

func TestRepository_SaveConflictOnDeletedRow(t *testing.T) {
	m := NewMetrics()
	e := newTestEngine(t, WithMetrics(m))
	repo := newCounterRepo(t, e)
	ctx := context.Background()

	_, err := repo.Save(ctx, newCounter("a"))
	require.NoError(t, err)
	v, err := repo.Find(ctx, "a")
	require.NoError(t, err)

	mut := loadedCounter(*v)
	mut.label.Set("changed")

	err = e.WithSession(ctx, func(ctx context.Context, s *session.Session) error {
		_, err := s.ExecContext(ctx, "DELETE FROM counter WHERE id = ?", "a")
		return err
	})
	require.NoError(t, err)

	_, err = repo.Save(ctx, mut)
	require.Error(t, err)
	assert.True(t, dberr.IsConflict(err))

	var de *dberr.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "counter", de.Table)
	assert.Equal(t, "a", de.ID)
	assert.Equal(t, "UPDATE", de.Statement)

	assert.True(t, mut.label.Dirty(), "a conflicting write must leave holders dirty")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conflicts))
}

func TestRepository_SaveInsideTransactionRollsBack(t *testing.T) {
	e := newTestEngine(t)
	repo := newCounterRepo(t, e)
	ctx := context.Background()

	err := e.WithTransaction(ctx, func(ctx context.Context, _ *session.Session) error {
		if _, err := repo.Save(ctx, newCounter("a")); err != nil {
			return err
		}
		_, err := repo.Save(ctx, newCounter("a"))
		return err
	})
	require.Error(t, err)

	assert.Equal(t, 0, countRows(t, e, "counter"))
}

func TestExec_GeneratedKeys(t *testing.T) {
	e := newTestEngine(t)
	compiler := querysql.NewSQLCompiler()
	ctx := context.Background()

	var ids []int64
	for _, note := range []string{"one", "two"} {
		st, err := compiler.Compile("journal", querysql.Insert,
			holder.NewPending("counter_id", "a"),
			holder.NewPending("note", note),
		)
		require.NoError(t, err)
		require.True(t, st.ReturnKeys)

		res, err := e.Exec(ctx, st)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)
		ids = append(ids, res.LastInsertID)
	}

	assert.Equal(t, []int64{1, 2}, ids)
}

func TestExec_EmptyStatement(t *testing.T) {
	e := New(failingProvider{})

	res, err := e.Exec(context.Background(), querysql.Statement{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestExec_DriverErrorCarriesContext(t *testing.T) {
	e := newTestEngine(t)

	st, err := querysql.NewSQLCompiler().Compile("missing_table", querysql.Insert, holder.NewPending("x", 1))
	require.NoError(t, err)

	_, err = e.Exec(context.Background(), st)
	require.Error(t, err)
	assert.True(t, dberr.IsDriver(err))

	var de *dberr.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "missing_table", de.Table)
	assert.Equal(t, "INSERT", de.Statement)
}
