package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/lanatus/internal/account"
)

// CreditResult is the JSON payload of account credit.
type CreditResult struct {
	LedgerID int64             `json:"ledger_id"`
	Account  *account.Snapshot `json:"account"`
}

// String implements fmt.Stringer.
func (r CreditResult) String() string {
	return fmt.Sprintf("✓ Credited (ledger #%d)\n%s", r.LedgerID, r.Account)
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and modify player accounts",
	}

	cmd.AddCommand(newAccountShowCommand(rootOpts))
	cmd.AddCommand(newAccountCreditCommand(rootOpts))
	cmd.AddCommand(newAccountRankCommand(rootOpts))

	return cmd
}

func newAccountShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <player-id>",
		Short: "Print a player's account",
		Long: `Print a player's account. Players without a stored account
show the default: 0 melons, rank "default".

Example:
  lanatus account show 6f1c9a4e-2b7d-4c55-9e0a-3d8b1f2a7c10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlayerID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.accounts.Find(ctx, id)
			if err != nil {
				return WrapDBError("failed to read account", err)
			}
			return rootOpts.formatter(cmd).Success(s)
		},
	}
}

func newAccountCreditCommand(rootOpts *RootOptions) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "credit <player-id> <amount>",
		Short: "Add (or with a negative amount, remove) melons",
		Long: `Add melons to a player's account and record the change in the
melon ledger, in one transaction.

Example:
  lanatus account credit 6f1c9a4e-2b7d-4c55-9e0a-3d8b1f2a7c10 100 --comment "welcome bonus"
  lanatus account credit 6f1c9a4e-2b7d-4c55-9e0a-3d8b1f2a7c10 -- -30`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlayerID(args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			ledgerID, err := a.accounts.Credit(ctx, id, amount, comment)
			if err != nil {
				return WrapDBError("failed to credit account", err)
			}
			a.log.Info("account credited", "player", id, "amount", amount, "ledger_id", ledgerID)

			s, err := a.accounts.Find(ctx, id)
			if err != nil {
				return WrapDBError("failed to read account", err)
			}
			return rootOpts.formatter(cmd).Success(CreditResult{LedgerID: ledgerID, Account: s})
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "ledger comment")

	return cmd
}

func newAccountRankCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rank <player-id> <rank>",
		Short: "Set a player's rank",
		Long: `Set a player's last rank, creating the account if needed.

Example:
  lanatus account rank 6f1c9a4e-2b7d-4c55-9e0a-3d8b1f2a7c10 vip`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlayerID(args[0])
			if err != nil {
				return err
			}
			if args[1] == "" {
				return NewExitError(ExitCommandError, "rank must not be empty")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.accounts.FindMutable(ctx, id)
			if err != nil {
				return WrapDBError("failed to read account", err)
			}
			m.SetLastRank(args[1])
			if err := a.accounts.Save(ctx, m); err != nil {
				return WrapDBError("failed to save account", err)
			}

			return rootOpts.formatter(cmd).Success(m.Snapshot())
		},
	}
}

func parsePlayerID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, "invalid player id", err)
	}
	return id, nil
}
