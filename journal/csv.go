package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/pulse/ledger"
)

var (
	tradesHeader = []string{"trade_id", "symbol", "side", "qty", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "reason"}
	equityHeader = []string{"time", "balance", "committed", "unrealized", "equity", "day_pnl"}
)

// CSV appends to two files, one per record kind. Rows are flushed as
// they are written so the files can be tailed while the engine runs.
type CSV struct {
	mu     sync.Mutex
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSV, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	j := &CSV{trades: csv.NewWriter(tf), equity: csv.NewWriter(ef), tf: tf, ef: ef}
	if err := writeRow(j.trades, tradesHeader); err != nil {
		j.Close()
		return nil, err
	}
	if err := writeRow(j.equity, equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSV) RecordTrade(t ledger.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRow(j.trades, []string{
		t.ID,
		t.Symbol,
		string(t.Side),
		strconv.FormatInt(t.Qty, 10),
		t.EntryPrice.StringFixed(2),
		t.ExitPrice.StringFixed(2),
		t.OpenedAt.UTC().Format(time.RFC3339),
		t.Timestamp.UTC().Format(time.RFC3339),
		t.PnL.StringFixed(2),
		string(t.Reason),
	})
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRow(j.equity, []string{
		e.Time.UTC().Format(time.RFC3339),
		e.Balance.StringFixed(2),
		e.Committed.StringFixed(2),
		e.Unrealized.StringFixed(2),
		e.Equity.StringFixed(2),
		e.DayPnL.StringFixed(2),
	})
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	j.equity.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	if err := j.equity.Error(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
