package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/pulse/ledger"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t ledger.TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, side, qty, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, string(t.Side), t.Qty,
		t.EntryPrice.String(), t.ExitPrice.String(),
		t.OpenedAt.UTC(), t.Timestamp.UTC(),
		t.PnL.String(), string(t.Reason),
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, committed, unrealized, equity, day_pnl)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Balance.String(), e.Committed.String(),
		e.Unrealized.String(), e.Equity.String(), e.DayPnL.String(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
