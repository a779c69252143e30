package holder

import "fmt"

// Source is a tracked column as seen by the write compiler.
type Source interface {
	// Column returns the column this source writes to.
	Column() string

	// Kind returns the write kind of every snapshot this source produces.
	Kind() Kind

	// Snapshot returns the pending change, or false if there is nothing to write.
	// Predicate sources always return a snapshot.
	Snapshot() (Snapshot, bool)

	// MarkWritten confirms that the given snapshot was persisted.
	MarkWritten(s Snapshot)
}

// Number is the set of types a Delta can track.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func mustColumn(column string) string {
	if column == "" {
		panic("holder: empty column name")
	}
	return column
}

func mustSnapshot(column string, value any, kind Kind) Snapshot {
	s, err := NewSnapshot(column, value, kind)
	if err != nil {
		panic(fmt.Sprintf("holder: %v", err))
	}
	return s
}

// Value tracks a column that is written with an absolute update.
type Value[T comparable] struct {
	column       string
	current      T
	persisted    T
	hasPersisted bool
}

// NewValue creates a clean holder for a value loaded from the database.
// Panics if column is empty.
func NewValue[T comparable](column string, loaded T) *Value[T] {
	return &Value[T]{
		column:       mustColumn(column),
		current:      loaded,
		persisted:    loaded,
		hasPersisted: true,
	}
}

// NewPending creates a dirty holder for an entity that does not exist remotely yet.
// Panics if column is empty.
func NewPending[T comparable](column string, v T) *Value[T] {
	return &Value[T]{column: mustColumn(column), current: v}
}

// Get returns the current value.
func (h *Value[T]) Get() T { return h.current }

// Set stores v. The holder becomes dirty only if v differs from the
// current value; setting the last persisted value again makes it clean.
func (h *Value[T]) Set(v T) {
	if v == h.current {
		return
	}
	h.current = v
}

// Dirty reports whether the current value differs from the last persisted one.
func (h *Value[T]) Dirty() bool {
	return !h.hasPersisted || h.current != h.persisted
}

// Column implements Source.
func (h *Value[T]) Column() string { return h.column }

// Kind implements Source.
func (h *Value[T]) Kind() Kind { return AbsoluteUpdate }

// Snapshot implements Source.
func (h *Value[T]) Snapshot() (Snapshot, bool) {
	if !h.Dirty() {
		return Snapshot{}, false
	}
	return mustSnapshot(h.column, h.current, AbsoluteUpdate), true
}

// MarkWritten implements Source. The written value becomes the persisted
// value; a Set made after the snapshot was taken stays dirty.
func (h *Value[T]) MarkWritten(s Snapshot) {
	v, ok := s.Value().(T)
	if !ok {
		return
	}
	h.persisted = v
	h.hasPersisted = true
}

// Delta tracks a numeric column that is written as a relative change.
type Delta[T Number] struct {
	column  string
	base    T
	pending T
}

// NewDelta creates a clean holder for a numeric value loaded from the database.
// Panics if column is empty.
func NewDelta[T Number](column string, loaded T) *Delta[T] {
	return &Delta[T]{column: mustColumn(column), base: loaded}
}

// Get returns the local view of the value: loaded value plus pending delta.
func (h *Delta[T]) Get() T { return h.base + h.pending }

// Pending returns the delta not yet written.
func (h *Delta[T]) Pending() T { return h.pending }

// Add records a relative change.
func (h *Delta[T]) Add(d T) { h.pending += d }

// Set records the change needed to reach v from the current local view.
func (h *Delta[T]) Set(v T) {
	if v == h.Get() {
		return
	}
	h.pending += v - h.Get()
}

// Dirty reports whether there is a delta to write.
func (h *Delta[T]) Dirty() bool { return h.pending != 0 }

// Column implements Source.
func (h *Delta[T]) Column() string { return h.column }

// Kind implements Source.
func (h *Delta[T]) Kind() Kind { return NumericDelta }

// Snapshot implements Source. The snapshot carries the delta, not the
// absolute value.
func (h *Delta[T]) Snapshot() (Snapshot, bool) {
	if h.pending == 0 {
		return Snapshot{}, false
	}
	return mustSnapshot(h.column, h.pending, NumericDelta), true
}

// MarkWritten implements Source. Exactly the written delta moves into the
// base, so changes added after the snapshot stay pending.
func (h *Delta[T]) MarkWritten(s Snapshot) {
	d, ok := s.Value().(T)
	if !ok {
		return
	}
	h.base += d
	h.pending -= d
}

// Identity identifies a row. It is never dirty in the mutation sense and
// always contributes to the WHERE clause.
type Identity[T comparable] struct {
	column string
	value  T
	kind   Kind
}

// NewIdentity creates a PREDICATE holder (col=?).
// Panics if column is empty.
func NewIdentity[T comparable](column string, v T) *Identity[T] {
	return &Identity[T]{column: mustColumn(column), value: v, kind: Predicate}
}

// NewNegatedIdentity creates a NEGATED_PREDICATE holder (col!=?).
// Panics if column is empty.
func NewNegatedIdentity[T comparable](column string, v T) *Identity[T] {
	return &Identity[T]{column: mustColumn(column), value: v, kind: NegatedPredicate}
}

// Get returns the identifying value.
func (h *Identity[T]) Get() T { return h.value }

// Column implements Source.
func (h *Identity[T]) Column() string { return h.column }

// Kind implements Source.
func (h *Identity[T]) Kind() Kind { return h.kind }

// Snapshot implements Source. Always returns a snapshot.
func (h *Identity[T]) Snapshot() (Snapshot, bool) {
	return mustSnapshot(h.column, h.value, h.kind), true
}

// MarkWritten implements Source. No-op.
func (h *Identity[T]) MarkWritten(Snapshot) {}

var (
	_ Source = (*Value[string])(nil)
	_ Source = (*Delta[int64])(nil)
	_ Source = (*Identity[string])(nil)
)
