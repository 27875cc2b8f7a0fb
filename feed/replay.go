package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// Event is a scripted command carried on a replay row, applied after the
// row's tick.
type Event struct {
	Time time.Time
	Name string
	Args []string
}

// Replay reads tick CSV rows:
//
//	time,symbol,price,bid,ask[,event,arg...]
//
// time is RFC3339 or RFC3339Nano; bid and ask may be empty. A single
// header row ("time,...") is allowed. Rows for other symbols are skipped,
// as are rows outside [From, To) when those are set.
//
// With Speed 0 rows are emitted as fast as the consumer takes them;
// otherwise the gaps between row times are replayed divided by Speed.
type Replay struct {
	Path    string
	From    time.Time
	To      time.Time
	Speed   float64
	OnEvent func(ctx context.Context, ev Event) error
}

func NewReplay(path string) *Replay {
	return &Replay{Path: path}
}

func (r *Replay) Run(ctx context.Context, symbol string, emit func(market.Tick)) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Read(ctx, f, symbol, emit)
}

// Read replays rows from rd.
func (r *Replay) Read(ctx context.Context, rd io.Reader, symbol string, emit func(market.Tick)) error {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		line     int
		sawFirst bool
		last     time.Time
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if len(row) == 0 {
			continue
		}
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		t, ev, ok, err := parseReplayRow(row)
		if err != nil {
			return fmt.Errorf("replay %s line %d: %w", r.Path, line, err)
		}
		if !ok || !inRange(t.Time, r.From, r.To) {
			continue
		}
		if symbol != "" && !strings.EqualFold(t.Symbol, symbol) {
			continue
		}

		if err := r.wait(ctx, last, t.Time); err != nil {
			return err
		}
		last = t.Time

		emit(t)
		if ev.Name != "" && r.OnEvent != nil {
			if err := r.OnEvent(ctx, ev); err != nil {
				return fmt.Errorf("replay %s line %d: %s: %w", r.Path, line, ev.Name, err)
			}
		}
	}
}

func (r *Replay) wait(ctx context.Context, last, next time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Speed <= 0 || last.IsZero() || !next.After(last) {
		return nil
	}
	gap := time.Duration(float64(next.Sub(last)) / r.Speed)
	timer := time.NewTimer(gap)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseReplayRow(row []string) (market.Tick, Event, bool, error) {
	// time,symbol,price is the minimum
	if len(row) < 3 {
		return market.Tick{}, Event{}, false, nil
	}
	ts := strings.TrimSpace(row[0])
	sym := strings.ToUpper(strings.TrimSpace(row[1]))
	if ts == "" || sym == "" {
		return market.Tick{}, Event{}, false, nil
	}

	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return market.Tick{}, Event{}, false, fmt.Errorf("bad time %q: %w", ts, err)
	}
	t := market.Tick{Symbol: sym, Time: at.UTC()}

	if t.Price, err = decimal.NewFromString(strings.TrimSpace(row[2])); err != nil {
		return market.Tick{}, Event{}, false, fmt.Errorf("bad price %q: %w", row[2], err)
	}
	if len(row) > 3 {
		if t.Bid, err = optionalDecimal(row[3]); err != nil {
			return market.Tick{}, Event{}, false, fmt.Errorf("bad bid %q: %w", row[3], err)
		}
	}
	if len(row) > 4 {
		if t.Ask, err = optionalDecimal(row[4]); err != nil {
			return market.Tick{}, Event{}, false, fmt.Errorf("bad ask %q: %w", row[4], err)
		}
	}
	if !t.Valid() {
		return market.Tick{}, Event{}, false, fmt.Errorf("bad price %q", row[2])
	}

	var ev Event
	if len(row) > 5 {
		ev.Name = strings.ToUpper(strings.TrimSpace(row[5]))
		ev.Time = t.Time
		for _, a := range row[6:] {
			if a = strings.TrimSpace(a); a != "" {
				ev.Args = append(ev.Args, a)
			}
		}
	}
	return t, ev, true, nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
