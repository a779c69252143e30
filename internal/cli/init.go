package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lanatus/internal/account"
)

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Driver  string `json:"driver"`
	Dialect string `json:"dialect"`
}

// String implements fmt.Stringer.
func (r InitResult) String() string {
	return fmt.Sprintf("✓ Schema ready (driver=%s, dialect=%s)", r.Driver, r.Dialect)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the account tables",
		Long: `Create the account and melon ledger tables if they do not exist.

Example:
  lanatus init --db ./lanatus.db
  lanatus init --driver mysql --db 'lanatus:secret@tcp(localhost:3306)/lanatus'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := account.EnsureSchema(ctx, a.engine, a.store.Dialect()); err != nil {
				return WrapDBError("failed to create schema", err)
			}

			return rootOpts.formatter(cmd).Success(InitResult{
				Driver:  a.cfg.Database.Driver,
				Dialect: string(a.store.Dialect()),
			})
		},
	}
}
