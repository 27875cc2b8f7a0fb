package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/pulse/ledger"
)

// FormatTradeOrg renders a trade as an Org-mode entry. The facts go in a
// PROPERTIES drawer so they stay searchable; the headings below are left
// for the trader's own notes.
func FormatTradeOrg(t ledger.TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s %d (%s)\n", t.Side.Label(), t.Symbol, t.Qty, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QTY: %d\n", t.Qty)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", t.EntryPrice.StringFixed(2))
	fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", t.ExitPrice.StringFixed(2))
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PL: %s\n", t.PnL.StringFixed(2))
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Setup\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []ledger.TradeRecord) string {
	parts := make([]string, 0, len(trades))
	for _, t := range trades {
		parts = append(parts, FormatTradeOrg(t))
	}
	return strings.Join(parts, "\n\n")
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
