package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

func sampleTrade(id string, closed time.Time, pnl string) ledger.TradeRecord {
	return ledger.TradeRecord{
		ID:         id,
		Symbol:     "TSLA",
		Side:       market.Buy,
		Qty:        20,
		EntryPrice: d("150.00"),
		ExitPrice:  d("144.00"),
		PnL:        d(pnl),
		Reason:     ledger.ReasonStop,
		OpenedAt:   closed.Add(-30 * time.Minute),
		Timestamp:  closed,
	}
}
