package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/risk"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Size a bracket order from a dollar risk",
	Long: `Compute the share quantity that risks a fixed dollar amount between
entry and stop, with the capital it needs and the reward:risk ratio.

Example:
  pulse size --side BUY --price 150 --stop 145 --target 161 --risk 100`,
	Args: cobra.NoArgs,
	RunE: runSize,
}

var (
	sizeSide    string
	sizePrice   string
	sizeStop    string
	sizeTarget  string
	sizeRisk    string
	sizeBalance string
)

func init() {
	rootCmd.AddCommand(sizeCmd)

	sizeCmd.Flags().StringVar(&sizeSide, "side", "BUY", "BUY or SELL")
	sizeCmd.Flags().StringVar(&sizePrice, "price", "", "entry price (required)")
	sizeCmd.Flags().StringVar(&sizeStop, "stop", "", "stop price (required)")
	sizeCmd.Flags().StringVar(&sizeTarget, "target", "0", "target price, 0 for none")
	sizeCmd.Flags().StringVar(&sizeRisk, "risk", "100", "dollars at risk")
	sizeCmd.Flags().StringVar(&sizeBalance, "balance", "10000", "available balance")
	sizeCmd.MarkFlagRequired("price")
	sizeCmd.MarkFlagRequired("stop")
}

func runSize(cmd *cobra.Command, args []string) error {
	side, err := market.ParseSide(sizeSide)
	if err != nil {
		return err
	}
	in := risk.Inputs{Side: side}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"price", sizePrice, &in.Price},
		{"stop", sizeStop, &in.Stop},
		{"target", sizeTarget, &in.Target},
		{"risk", sizeRisk, &in.RiskAmount},
		{"balance", sizeBalance, &in.Balance},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.dst = v
	}

	res := risk.Size(in)
	fmt.Printf("Side:             %s\n", side)
	fmt.Printf("Quantity:         %d\n", res.Quantity)
	fmt.Printf("Risk per share:   $%s\n", res.RiskPerShare.StringFixed(2))
	fmt.Printf("Total risk:       $%s\n", res.TotalRisk.StringFixed(2))
	fmt.Printf("Required capital: $%s\n", res.RequiredCapital.StringFixed(2))
	fmt.Printf("Reward:risk:      %s\n", res.Ratio)
	for _, v := range res.Violations {
		fmt.Printf("  ! %s: %s\n", v.Code, v.Msg)
	}
	if !res.Valid {
		return fmt.Errorf("order cannot be sized")
	}
	return nil
}
