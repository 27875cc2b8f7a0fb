package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pulse/market"
)

type testStore struct {
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (s *testStore) Load(ctx context.Context) ([]byte, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, ErrNotFound
	}
	return s.data, nil
}

func (s *testStore) Save(ctx context.Context, data []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.data = append([]byte(nil), data...)
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleRecord(pnl string) TradeRecord {
	return TradeRecord{
		ID:         "01HX0000000000000000000000",
		Symbol:     "TSLA",
		Side:       market.Buy,
		Qty:        20,
		EntryPrice: d("150.013"),
		ExitPrice:  d("144"),
		PnL:        d(pnl),
		Reason:     ReasonStop,
		OpenedAt:   time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
		Timestamp:  time.Date(2024, 1, 2, 14, 35, 0, 0, time.UTC),
	}
}

func TestLoadMissingUsesDefault(t *testing.T) {
	t.Parallel()

	l := New(&testStore{})
	acct := l.Load(context.Background())

	assert.True(t, DefaultBalance.Equal(acct.Balance))
	assert.True(t, DefaultBalance.Equal(acct.StartingBalance))
	assert.Zero(t, acct.TotalTrades)
	assert.Empty(t, acct.Trades)
}

func TestLoadCorruptUsesDefault(t *testing.T) {
	t.Parallel()

	l := New(&testStore{data: []byte("{not json")}, WithStartingBalance(d("2500")))
	acct := l.Load(context.Background())

	assert.True(t, d("2500").Equal(acct.Balance))
}

func TestLoadStoreErrorUsesDefault(t *testing.T) {
	t.Parallel()

	l := New(&testStore{loadErr: errors.New("disk on fire")})
	acct := l.Load(context.Background())

	assert.True(t, DefaultBalance.Equal(acct.Balance))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &testStore{}
	l := New(st)
	l.Load(ctx)

	require.NoError(t, l.Debit(ctx, d("3000.26")))
	require.NoError(t, l.SettleAndRecord(ctx, d("3000.26"), d("-120.26"), sampleRecord("-120.26")))
	before := l.Snapshot()

	reloaded := New(st)
	after := reloaded.Load(ctx)

	assert.True(t, before.Equal(after), "before %+v after %+v", before, after)
	assert.True(t, d("9879.74").Equal(after.Balance))
}

func TestDebitAndSettle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &testStore{}
	l := New(st)

	require.NoError(t, l.Debit(ctx, d("3000")))
	assert.True(t, d("7000").Equal(l.Balance()))

	require.NoError(t, l.Settle(ctx, d("1500"), d("50")))
	acct := l.Snapshot()
	assert.True(t, d("8550").Equal(acct.Balance))
	assert.True(t, d("50").Equal(acct.DayPnL))
	assert.Zero(t, acct.TotalTrades)
	assert.Equal(t, 2, st.saves)
}

func TestSettleAndRecordCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(&testStore{})

	require.NoError(t, l.SettleAndRecord(ctx, d("0"), d("220"), sampleRecord("220")))
	require.NoError(t, l.SettleAndRecord(ctx, d("0"), d("-120"), sampleRecord("-120")))
	require.NoError(t, l.SettleAndRecord(ctx, d("0"), d("0"), sampleRecord("0")))

	acct := l.Snapshot()
	assert.Equal(t, 3, acct.TotalTrades)
	assert.Equal(t, 1, acct.WinningTrades)
	assert.Len(t, acct.Trades, 3)
	assert.True(t, d("100").Equal(acct.DayPnL))
	assert.Equal(t, "33.33", acct.WinRate().StringFixed(2))
}

func TestSaveFailureKeepsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(&testStore{saveErr: errors.New("quota exceeded")})

	err := l.Debit(ctx, d("100"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, d("9900").Equal(l.Balance()))
}

func TestResetRequiresConfirmation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(&testStore{})
	require.NoError(t, l.SettleAndRecord(ctx, d("0"), d("50"), sampleRecord("50")))

	err := l.Reset(ctx, false)
	assert.ErrorIs(t, err, ErrResetNotConfirmed)
	assert.Equal(t, 1, l.Snapshot().TotalTrades)

	require.NoError(t, l.Reset(ctx, true))
	acct := l.Snapshot()
	assert.True(t, DefaultBalance.Equal(acct.Balance))
	assert.True(t, acct.DayPnL.IsZero())
	assert.Zero(t, acct.TotalTrades)
	assert.Zero(t, acct.WinningTrades)
	assert.Empty(t, acct.Trades)
}

func TestRollDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &testStore{}
	l := New(st)

	require.NoError(t, l.RollDay(ctx))
	assert.Zero(t, st.saves)

	require.NoError(t, l.Settle(ctx, d("0"), d("-40")))
	require.NoError(t, l.RollDay(ctx))
	assert.True(t, l.Snapshot().DayPnL.IsZero())
	assert.True(t, d("9960").Equal(l.Balance()))
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(&testStore{})
	require.NoError(t, l.SettleAndRecord(ctx, d("0"), d("10"), sampleRecord("10")))

	snap := l.Snapshot()
	snap.Trades[0].Symbol = "MUTATED"

	assert.Equal(t, "TSLA", l.Snapshot().Trades[0].Symbol)
}

func TestAccountDerivedValues(t *testing.T) {
	t.Parallel()

	acct := NewAccount(d("10000"))
	assert.True(t, acct.WinRate().IsZero())

	acct.Balance = d("10250")
	assert.True(t, d("250").Equal(acct.PnL()))
	assert.Equal(t, "2.50", acct.PnLPercent().StringFixed(2))
}
