// Package holder tracks field mutations of persisted entities.
//
// An entity declares one holder per persisted column, explicitly, in its
// constructor. There is no field scanning or reflection: the list of holders
// an entity returns from its Holders method is the complete description of
// what can be written.
//
// A holder yields an immutable Snapshot for the current write cycle, or
// nothing if it is unchanged. Clearing the dirty state is two-phase: the
// compiler takes snapshots (peek), and only after the statement succeeded are
// they handed back through MarkWritten (commit). A failed write therefore
// leaves every holder dirty.
//
// Holder kinds:
//
//	Value[T]     ABSOLUTE_UPDATE     col=?
//	Delta[T]     NUMERIC_DELTA       col=col+?
//	Identity[T]  PREDICATE           col=?   (WHERE)
//	             NEGATED_PREDICATE   col!=?  (WHERE)
//
// Holders are not safe for concurrent use. An entity instance belongs to one
// call chain at a time.
package holder
