package cmd

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/config"
	"github.com/rustyeddy/pulse/events"
	"github.com/rustyeddy/pulse/feed"
	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/store"
)

func testDesk(t *testing.T, rec *events.Recorder) *desk {
	t.Helper()
	cfg := config.Default()
	cfg.Journal.Type = "none"
	cfg.Execution.MaxSlippage = decimal.Zero

	d, err := buildDesk(context.Background(), cfg, zap.NewNop(), deskOptions{
		store:     store.Options{Type: "memory"},
		publisher: rec,
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestBuildDeskDefaults(t *testing.T) {
	d := testDesk(t, &events.Recorder{})

	assert.Equal(t, "TSLA", d.sess.Symbol())
	assert.Equal(t, arming.Disarmed, d.arm.State())
	assert.True(t, d.ledger.Balance().Equal(decimal.NewFromInt(10000)))
	assert.Nil(t, d.history)
}

func TestOpenJournalNone(t *testing.T) {
	j, h, err := openJournal(config.JournalConfig{Type: "none"})
	require.NoError(t, err)
	assert.NotNil(t, j)
	assert.Nil(t, h)
}

func TestReplayScript(t *testing.T) {
	rec := &events.Recorder{}
	d := testDesk(t, rec)
	ctx := context.Background()

	csv := `time,symbol,price,bid,ask
2025-01-02T14:30:00Z,TSLA,150,,,TICKET,100,145,161
2025-01-02T14:30:01Z,TSLA,150,,,STAGE
2025-01-02T14:30:02Z,TSLA,150,,,ARM
2025-01-02T14:30:03Z,TSLA,150,,,BUY
2025-01-02T14:30:04Z,AAPL,400,,
2025-01-02T14:30:05Z,TSLA,161,,
`
	rp := &feed.Replay{OnEvent: func(ctx context.Context, ev feed.Event) error {
		return applyReplayEvent(ctx, d.sess, ev)
	}}
	emit := func(tk market.Tick) { d.sess.HandleTick(ctx, tk) }
	require.NoError(t, rp.Read(ctx, strings.NewReader(csv), "TSLA", emit))

	acct := d.ledger.Snapshot()
	require.Len(t, acct.Trades, 1)
	assert.True(t, acct.Trades[0].PnL.Equal(decimal.NewFromInt(220)), acct.Trades[0].PnL.String())
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(10220)))

	var msgs []string
	for _, tt := range rec.Toasts() {
		msgs = append(msgs, tt.Message)
	}
	assert.Contains(t, msgs, "✅ BUY 20 TSLA @ $150.00")
	assert.Contains(t, msgs, "🎯 TAKE PROFIT HIT")
}

func TestReplayEventErrors(t *testing.T) {
	d := testDesk(t, &events.Recorder{})
	ctx := context.Background()

	tests := []struct {
		name string
		ev   feed.Event
	}{
		{"unknown", feed.Event{Name: "HODL"}},
		{"partial without percent", feed.Event{Name: "PARTIAL"}},
		{"ticket short", feed.Event{Name: "TICKET", Args: []string{"100"}}},
		{"ticket bad number", feed.Event{Name: "TICKET", Args: []string{"x", "145"}}},
		{"signal bad direction", feed.Event{Name: "SIGNAL", Args: []string{"sideways", "1m"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, applyReplayEvent(ctx, d.sess, tt.ev), errReplayCommand)
		})
	}

	// desk rejections are toasted, not returned
	assert.NoError(t, applyReplayEvent(ctx, d.sess, feed.Event{Name: "BUY"}))
	assert.NoError(t, applyReplayEvent(ctx, d.sess, feed.Event{Name: "DISARM"}))
}

func TestDayBounds(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start, end, err := dayBounds(ny, "2025-03-09")
	require.NoError(t, err)
	assert.Equal(t, 9, start.Day())
	assert.Equal(t, 10, end.Day())
	assert.Equal(t, 0, end.Hour(), "DST day still ends at local midnight")

	_, _, err = dayBounds(ny, "03/09/2025")
	assert.Error(t, err)
}

func TestFollowSymbolRestartsOnChange(t *testing.T) {
	d := testDesk(t, &events.Recorder{})

	var mu sync.Mutex
	var seen []string
	src := feed.SourceFunc(func(ctx context.Context, symbol string, emit func(market.Tick)) error {
		mu.Lock()
		seen = append(seen, symbol)
		mu.Unlock()
		emit(market.Tick{Symbol: symbol, Price: decimal.NewFromInt(100)})
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- followSymbol(ctx, d.sess, src, feed.NewMailbox(), zap.NewNop()) }()

	require.NoError(t, d.sess.SetSymbol("aapl"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == "AAPL"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("followSymbol did not stop")
	}
}
