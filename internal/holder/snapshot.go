package holder

import (
	"errors"
	"fmt"
)

// Kind determines the SQL operator a snapshot is rendered with.
type Kind int

const (
	// AbsoluteUpdate overwrites the column; the previous remote value is lost.
	AbsoluteUpdate Kind = iota

	// NumericDelta adds the snapshot value to the remote column value.
	// Deltas commute with concurrent writers.
	NumericDelta

	// Predicate identifies the row: col=?.
	Predicate

	// NegatedPredicate selects rows whose column differs: col!=?.
	NegatedPredicate
)

var kindNames = map[Kind]string{
	AbsoluteUpdate:   "ABSOLUTE_UPDATE",
	NumericDelta:     "NUMERIC_DELTA",
	Predicate:        "PREDICATE",
	NegatedPredicate: "NEGATED_PREDICATE",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsPredicate reports whether snapshots of this kind belong to the WHERE clause.
func (k Kind) IsPredicate() bool {
	return k == Predicate || k == NegatedPredicate
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Operator renders the operator template for a column.
//
//	AbsoluteUpdate   name=?
//	NumericDelta     name=name+?
//	Predicate        name=?
//	NegatedPredicate name!=?
func (k Kind) Operator(column string) string {
	switch k {
	case NumericDelta:
		return column + "=" + column + "+?"
	case NegatedPredicate:
		return column + "!=?"
	default:
		return column + "=?"
	}
}

// ErrInvalidSnapshot is returned when a snapshot would violate its invariants.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is an immutable description of one pending column change.
// It must be written as soon as possible; it is produced fresh for every
// write cycle and never reused.
type Snapshot struct {
	column string
	value  any
	kind   Kind
}

// NewSnapshot creates a snapshot.
// The column must be non-empty and the kind valid. Only AbsoluteUpdate
// snapshots may carry a nil value.
func NewSnapshot(column string, value any, kind Kind) (Snapshot, error) {
	if column == "" {
		return Snapshot{}, fmt.Errorf("%w: empty column name", ErrInvalidSnapshot)
	}
	if !kind.Valid() {
		return Snapshot{}, fmt.Errorf("%w: unknown kind %d for column %s", ErrInvalidSnapshot, int(kind), column)
	}
	if value == nil && kind != AbsoluteUpdate {
		return Snapshot{}, fmt.Errorf("%w: nil value for %s column %s", ErrInvalidSnapshot, kind, column)
	}
	return Snapshot{column: column, value: value, kind: kind}, nil
}

// Column returns the target column name.
func (s Snapshot) Column() string { return s.column }

// Value returns the payload. For NumericDelta it is the delta, not the
// absolute value.
func (s Snapshot) Value() any { return s.value }

// Kind returns the write kind.
func (s Snapshot) Kind() Kind { return s.kind }

// Operator renders this snapshot's SQL fragment.
func (s Snapshot) Operator() string { return s.kind.Operator(s.column) }

// String formats the snapshot for diagnostics.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s %s %v", s.kind, s.column, s.value)
}
