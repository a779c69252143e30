// Package dberr defines the error taxonomy shared by the persistence packages.
//
// Errors fall into four categories:
//   - Usage: programmer error (closed session, commit without transaction,
//     unscoped UPDATE). Fatal to the current call, never retried.
//   - Conflict: a write predicate matched zero rows because the entity was
//     changed or deleted concurrently. Retry policy belongs to the caller.
//   - Driver: the underlying connection or statement failed.
//   - NotFound: a lookup matched no row.
//
// Every *Error carries enough context (table, column, id, statement kind) for a
// caller to log or retry at a higher level.
package dberr

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies the error category.
type Code string

const (
	// CodeUsage indicates a caller contract violation.
	CodeUsage Code = "USAGE"

	// CodeConflict indicates a write predicate no longer matches any row.
	CodeConflict Code = "CONFLICT"

	// CodeDriver indicates the driver or connection failed.
	CodeDriver Code = "DRIVER"

	// CodeNotFound indicates a read matched no row.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is a persistence error with structured context.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Table is the affected table, if known.
	Table string

	// Column is the affected column, if known.
	Column string

	// ID is the identifier of the affected entity, if known.
	ID string

	// Statement is the statement class ("UPDATE", "INSERT", "SELECT", "COMMIT", ...).
	Statement string

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	if e.Statement != "" {
		ctx = append(ctx, "stmt="+e.Statement)
	}
	if e.Table != "" {
		ctx = append(ctx, "table="+e.Table)
	}
	if e.Column != "" {
		ctx = append(ctx, "column="+e.Column)
	}
	if e.ID != "" {
		ctx = append(ctx, "id="+e.ID)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Usage creates a usage error wrapping the given sentinel.
func Usage(err error, message string) *Error {
	return &Error{Code: CodeUsage, Message: message, Err: err}
}

// Conflict creates a conflict error for a write that matched no row.
func Conflict(table, id, statement string) *Error {
	return &Error{
		Code:      CodeConflict,
		Message:   "write predicate matched no row, entity was modified or deleted concurrently",
		Table:     table,
		ID:        id,
		Statement: statement,
	}
}

// Driver wraps a driver failure.
func Driver(statement string, err error) *Error {
	return &Error{Code: CodeDriver, Message: "driver call failed", Statement: statement, Err: err}
}

// NotFound creates a not-found error.
func NotFound(table, id string) *Error {
	return &Error{Code: CodeNotFound, Message: "no row matched", Table: table, ID: id, Statement: "SELECT"}
}

// IsUsage returns true if the error is a usage error.
// Uses errors.As to handle wrapped errors.
func IsUsage(err error) bool {
	return hasCode(err, CodeUsage)
}

// IsConflict returns true if the error is a conflict error.
func IsConflict(err error) bool {
	return hasCode(err, CodeConflict)
}

// IsDriver returns true if the error is a driver error.
func IsDriver(err error) bool {
	return hasCode(err, CodeDriver)
}

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func hasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
