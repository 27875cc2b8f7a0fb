package cmd

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/store"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Inspect or reset the stored paper account",
	Long: `Read the paper account from the configured store.

Subcommands:
  show  - Print balance, day P&L and trade counts
  reset - Restore the starting balance and clear the history

Examples:
  pulse account show -c pulse.yaml
  pulse account reset --yes`,
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored account",
	Args:  cobra.NoArgs,
	RunE:  runAccountShow,
}

var accountResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the stored account to its starting balance",
	Args:  cobra.NoArgs,
	RunE:  runAccountReset,
}

var accountResetYes bool

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountResetCmd)

	accountResetCmd.Flags().BoolVarP(&accountResetYes, "yes", "y", false, "confirm the reset")
}

func openLedger(ctx context.Context) (*ledger.Ledger, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, closeStore, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	l := ledger.New(st, ledger.WithStartingBalance(cfg.Account.StartingBalance))
	l.Load(ctx)
	return l, closeStore, nil
}

func runAccountShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	l, closeStore, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	acct := l.Snapshot()
	pnl := acct.Balance.Sub(acct.StartingBalance)
	fmt.Printf("Balance:     $%s\n", acct.Balance.StringFixed(2))
	fmt.Printf("Starting:    $%s\n", acct.StartingBalance.StringFixed(2))
	fmt.Printf("Total P&L:   $%s\n", pnl.StringFixed(2))
	fmt.Printf("Day P&L:     $%s\n", acct.DayPnL.StringFixed(2))
	fmt.Printf("Trades:      %d (%d winners)\n", acct.TotalTrades, acct.WinningTrades)
	if acct.TotalTrades > 0 {
		rate := decimal.NewFromInt(int64(acct.WinningTrades)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(acct.TotalTrades)))
		fmt.Printf("Win rate:    %s%%\n", rate.StringFixed(1))
	}
	return nil
}

func runAccountReset(cmd *cobra.Command, args []string) error {
	if !accountResetYes {
		return fmt.Errorf("refusing to reset without --yes")
	}
	ctx := context.Background()
	l, closeStore, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := l.Reset(ctx, true); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Printf("🔄 Account reset to $%s\n", l.Balance().StringFixed(2))
	return nil
}
