package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Table    string
	Insert   bool
	Set      []string
	Add      []string
	Where    []string
	WhereNot []string
}

// CompileResult is the JSON payload of the compile command.
type CompileResult struct {
	Op         string `json:"op"`
	SQL        string `json:"sql"`
	Params     []any  `json:"params"`
	ReturnKeys bool   `json:"return_keys"`
}

// String implements fmt.Stringer.
func (r CompileResult) String() string {
	if r.SQL == "" {
		return "(nothing to write)"
	}

	var b strings.Builder
	b.WriteString(r.SQL)
	for i, p := range r.Params {
		fmt.Fprintf(&b, "\n  $%d = %#v", i+1, p)
	}
	if r.ReturnKeys {
		b.WriteString("\n  (returns generated keys)")
	}
	return b.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the differential statement for a set of changes",
		Long: `Compile column changes into the statement Save would execute,
without touching a database.

Values that parse as integers are passed as integers, everything else as text.

Example:
  lanatus compile --table lanatus_player --add melons_count=5 --set last_rank=vip --where player_id=abc
  lanatus compile --table lanatus_melon_ledger --insert --set player_id=abc --set melons_delta=5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "target table (required)")
	cmd.Flags().BoolVar(&opts.Insert, "insert", false, "compile an INSERT instead of an UPDATE")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "absolute update column=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Add, "add", nil, "numeric delta column=n (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "predicate column=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.WhereNot, "where-not", nil, "negated predicate column=value (repeatable)")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	sources, err := opts.sources()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid column change", err)
	}

	mode := querysql.Update
	if opts.Insert {
		mode = querysql.Insert
	}

	st, err := querysql.NewSQLCompiler().Compile(opts.Table, mode, sources...)
	if err != nil {
		return WrapDBError("failed to compile", err)
	}

	f := opts.formatter(cmd)
	f.VerboseLog("compiled %d snapshot(s) for %s", len(st.Snapshots()), opts.Table)

	params := st.Params
	if params == nil {
		params = []any{}
	}
	return f.Success(CompileResult{
		Op:         st.Op,
		SQL:        st.SQL,
		Params:     params,
		ReturnKeys: st.ReturnKeys,
	})
}

// sources turns the flags into holders, in flag group order.
func (o *CompileOptions) sources() ([]holder.Source, error) {
	var sources []holder.Source

	for _, kv := range o.Set {
		col, v, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		sources = append(sources, holder.NewPending(col, parseValue(v)))
	}
	for _, kv := range o.Add {
		col, v, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--add %s: delta must be an integer", kv)
		}
		d := holder.NewDelta[int64](col, 0)
		d.Add(n)
		sources = append(sources, d)
	}
	for _, kv := range o.Where {
		col, v, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		sources = append(sources, holder.NewIdentity(col, parseValue(v)))
	}
	for _, kv := range o.WhereNot {
		col, v, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		sources = append(sources, holder.NewNegatedIdentity(col, parseValue(v)))
	}

	return sources, nil
}

func splitAssignment(kv string) (string, string, error) {
	col, v, ok := strings.Cut(kv, "=")
	if !ok || col == "" {
		return "", "", fmt.Errorf("%q: expected column=value", kv)
	}
	return col, v, nil
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
