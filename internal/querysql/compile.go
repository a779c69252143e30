package querysql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/lanatus/internal/dberr"
	"github.com/roach88/lanatus/internal/holder"
)

var (
	// ErrUnscopedUpdate is returned for an UPDATE without any predicate.
	// Executing it would rewrite every row of the table.
	ErrUnscopedUpdate = errors.New("update without predicate")

	// ErrNoColumns is returned for an INSERT or SELECT without columns.
	ErrNoColumns = errors.New("no columns")

	// ErrInvalidIdentifier is returned for table or column names that are not
	// plain SQL identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDuplicateColumn is returned when two mutations target the same column.
	ErrDuplicateColumn = errors.New("duplicate column")
)

// identifier matches column and table names, optionally schema-qualified.
// Names are interpolated into SQL, so nothing else is accepted.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Mode selects the statement a write compiles to.
type Mode int

const (
	// Update compiles to UPDATE ... SET ... WHERE ...
	Update Mode = iota

	// Insert compiles to INSERT INTO ... VALUES ... with generated-key retrieval.
	Insert
)

// String returns the SQL verb for the mode.
func (m Mode) String() string {
	if m == Insert {
		return "INSERT"
	}
	return "UPDATE"
}

// pending pairs a snapshot with the source that produced it, so the source
// can be told once the statement succeeded.
type pending struct {
	source   holder.Source
	snapshot holder.Snapshot
}

// Statement is a compiled, parameterized statement.
//
// The zero Statement means "nothing to write"; check Empty before executing.
type Statement struct {
	// SQL is the statement text with ? placeholders.
	SQL string

	// Params holds one value per placeholder, left to right.
	Params []any

	// ReturnKeys requests generated-key retrieval from the statement provider.
	ReturnKeys bool

	// Op is the statement class: "UPDATE", "INSERT" or "SELECT".
	Op string

	// Table is the target table.
	Table string

	pending []pending
}

// Empty reports whether there is nothing to execute.
func (s Statement) Empty() bool {
	return s.SQL == ""
}

// Commit confirms every snapshot of this statement to its source, clearing
// dirty state. Call it only after the statement executed successfully.
func (s Statement) Commit() {
	for _, p := range s.pending {
		p.source.MarkWritten(p.snapshot)
	}
}

// Snapshots returns the snapshots this statement was compiled from, in
// placeholder order.
func (s Statement) Snapshots() []holder.Snapshot {
	res := make([]holder.Snapshot, len(s.pending))
	for i, p := range s.pending {
		res[i] = p.snapshot
	}
	return res
}

// SQLCompiler compiles holders into parameterized SQL.
//
// CRITICAL: values are never interpolated; only validated identifiers are.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile builds one differential write for an entity stored in table.
//
// Every source that yields a snapshot takes part. Predicate snapshots identify
// the row, the others change it. For Update with no mutation the result is
// the empty Statement and no error. An Update without predicates fails with
// ErrUnscopedUpdate.
//
// Parameter order matches placeholder order: mutations first, then predicates.
func (c *SQLCompiler) Compile(table string, mode Mode, sources ...holder.Source) (Statement, error) {
	if err := checkIdentifier(table, table, ""); err != nil {
		return Statement{}, err
	}

	var predicates, mutations []pending
	for _, src := range sources {
		if src == nil {
			continue
		}
		snap, ok := src.Snapshot()
		if !ok {
			continue
		}
		if err := checkIdentifier(snap.Column(), table, snap.Column()); err != nil {
			return Statement{}, err
		}
		p := pending{source: src, snapshot: snap}
		if snap.Kind().IsPredicate() {
			predicates = append(predicates, p)
		} else {
			mutations = append(mutations, p)
		}
	}

	if err := checkDuplicates(table, mutations); err != nil {
		return Statement{}, err
	}

	switch mode {
	case Update:
		return c.compileUpdate(table, mutations, predicates)
	case Insert:
		return c.compileInsert(table, mutations, predicates)
	default:
		return Statement{}, fmt.Errorf("unsupported mode: %d", int(mode))
	}
}

// compileUpdate renders UPDATE t SET <mutations> WHERE <predicates>.
func (c *SQLCompiler) compileUpdate(table string, mutations, predicates []pending) (Statement, error) {
	if len(mutations) == 0 {
		return Statement{}, nil
	}
	if len(predicates) == 0 {
		e := dberr.Usage(ErrUnscopedUpdate, "refusing to compile an UPDATE that matches every row")
		e.Table = table
		e.Statement = "UPDATE"
		return Statement{}, e
	}

	setSQL, setParams := joinOperators(mutations, ", ")
	whereSQL, whereParams := joinOperators(predicates, " AND ")

	return Statement{
		SQL:     fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, setSQL, whereSQL),
		Params:  append(setParams, whereParams...),
		Op:      "UPDATE",
		Table:   table,
		pending: append(append([]pending{}, mutations...), predicates...),
	}, nil
}

// compileInsert renders INSERT INTO t (cols) VALUES (?...).
// Predicate values become ordinary inserted values. Negated predicates
// constrain rows rather than identify them and are left out.
func (c *SQLCompiler) compileInsert(table string, mutations, predicates []pending) (Statement, error) {
	all := append([]pending{}, mutations...)
	for _, p := range predicates {
		if p.snapshot.Kind() == holder.Predicate {
			all = append(all, p)
		}
	}
	if len(all) == 0 {
		e := dberr.Usage(ErrNoColumns, "nothing to insert")
		e.Table = table
		e.Statement = "INSERT"
		return Statement{}, e
	}
	if err := checkDuplicates(table, all); err != nil {
		return Statement{}, err
	}

	columns := make([]string, len(all))
	marks := make([]string, len(all))
	params := make([]any, len(all))
	for i, p := range all {
		columns[i] = p.snapshot.Column()
		marks[i] = "?"
		params[i] = p.snapshot.Value()
	}

	return Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table,
			strings.Join(columns, ", "),
			strings.Join(marks, ", ")),
		Params:     params,
		ReturnKeys: true,
		Op:         "INSERT",
		Table:      table,
		pending:    all,
	}, nil
}

// CompileSelect builds the read-side statement a row mapper scans:
// SELECT <columns> FROM t WHERE <predicates>.
// At least one predicate is required; mutation sources are ignored.
func (c *SQLCompiler) CompileSelect(table string, columns []string, predicates ...holder.Source) (Statement, error) {
	if err := checkIdentifier(table, table, ""); err != nil {
		return Statement{}, err
	}
	if len(columns) == 0 {
		e := dberr.Usage(ErrNoColumns, "nothing to select")
		e.Table = table
		e.Statement = "SELECT"
		return Statement{}, e
	}
	for _, col := range columns {
		if err := checkIdentifier(col, table, col); err != nil {
			return Statement{}, err
		}
	}

	var preds []pending
	for _, src := range predicates {
		if src == nil || !src.Kind().IsPredicate() {
			continue
		}
		snap, ok := src.Snapshot()
		if !ok {
			continue
		}
		if err := checkIdentifier(snap.Column(), table, snap.Column()); err != nil {
			return Statement{}, err
		}
		preds = append(preds, pending{source: src, snapshot: snap})
	}
	if len(preds) == 0 {
		e := dberr.Usage(ErrUnscopedUpdate, "refusing to compile a SELECT without predicate")
		e.Table = table
		e.Statement = "SELECT"
		return Statement{}, e
	}

	whereSQL, params := joinOperators(preds, " AND ")

	return Statement{
		SQL:    fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), table, whereSQL),
		Params: params,
		Op:     "SELECT",
		Table:  table,
	}, nil
}

// joinOperators renders each snapshot's operator and collects its value.
func joinOperators(ps []pending, sep string) (string, []any) {
	parts := make([]string, len(ps))
	params := make([]any, len(ps))
	for i, p := range ps {
		parts[i] = p.snapshot.Operator()
		params[i] = p.snapshot.Value()
	}
	return strings.Join(parts, sep), params
}

func checkDuplicates(table string, ps []pending) error {
	seen := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		col := p.snapshot.Column()
		if _, ok := seen[col]; ok {
			e := dberr.Usage(ErrDuplicateColumn, "column written twice in one statement")
			e.Table = table
			e.Column = col
			return e
		}
		seen[col] = struct{}{}
	}
	return nil
}

func checkIdentifier(name, table, column string) error {
	if identifier.MatchString(name) {
		return nil
	}
	e := dberr.Usage(ErrInvalidIdentifier, fmt.Sprintf("%q is not a plain identifier", name))
	e.Table = table
	e.Column = column
	return e
}
