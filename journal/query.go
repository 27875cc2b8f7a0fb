package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
)

var ErrTradeNotFound = errors.New("trade not found")

const tradeColumns = `trade_id, symbol, side, qty, entry_price, exit_price, open_time, close_time, realized_pl, reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(r rowScanner) (ledger.TradeRecord, error) {
	var (
		rec                   ledger.TradeRecord
		side, reason          string
		entry, exit, realized string
	)
	if err := r.Scan(
		&rec.ID,
		&rec.Symbol,
		&side,
		&rec.Qty,
		&entry,
		&exit,
		&rec.OpenedAt,
		&rec.Timestamp,
		&realized,
		&reason,
	); err != nil {
		return ledger.TradeRecord{}, err
	}

	var err error
	if rec.EntryPrice, err = decimal.NewFromString(entry); err != nil {
		return ledger.TradeRecord{}, fmt.Errorf("trade %s entry_price: %w", rec.ID, err)
	}
	if rec.ExitPrice, err = decimal.NewFromString(exit); err != nil {
		return ledger.TradeRecord{}, fmt.Errorf("trade %s exit_price: %w", rec.ID, err)
	}
	if rec.PnL, err = decimal.NewFromString(realized); err != nil {
		return ledger.TradeRecord{}, fmt.Errorf("trade %s realized_pl: %w", rec.ID, err)
	}
	rec.Side = market.Side(side)
	rec.Reason = ledger.Reason(reason)
	return rec, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (ledger.TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrTradeNotFound)
	}
	return rec, err
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]ledger.TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns snapshots taken within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, committed, unrealized, equity, day_pnl
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var (
			snap EquitySnapshot
			vals [5]string
		)
		if err := rows.Scan(&snap.Time, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4]); err != nil {
			return nil, err
		}
		dst := []*decimal.Decimal{&snap.Balance, &snap.Committed, &snap.Unrealized, &snap.Equity, &snap.DayPnL}
		for i, v := range vals {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("equity row %s: %w", snap.Time.Format(time.RFC3339), err)
			}
			*dst[i] = d
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
