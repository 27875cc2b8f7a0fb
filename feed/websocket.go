package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/market"
)

// WebSocket reads JSON ticks from <URL>/<symbol>.
type WebSocket struct {
	URL          string
	Dialer       *websocket.Dialer
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration

	log *zap.Logger
}

func NewWebSocket(url string, log *zap.Logger) *WebSocket {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocket{
		URL:          url,
		Dialer:       websocket.DefaultDialer,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		PingInterval: 20 * time.Second,
		log:          log.Named("feed.ws"),
	}
}

func (w *WebSocket) Endpoint(symbol string) string {
	return strings.TrimRight(w.URL, "/") + "/" + symbol
}

func (w *WebSocket) Run(ctx context.Context, symbol string, emit func(market.Tick)) error {
	endpoint := w.Endpoint(symbol)
	conn, resp, err := w.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("feed: dial %s: http %d: %w", endpoint, resp.StatusCode, err)
		}
		return fmt.Errorf("feed: dial %s: %w", endpoint, err)
	}
	w.log.Info("connected", zap.String("url", endpoint))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(w.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// unblocks ReadMessage
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(w.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					w.log.Warn("ping failed", zap.Error(err))
					conn.Close()
					return
				}
			}
		}
	}()
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read %s: %w", endpoint, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))

		t, err := DecodeTick(msg)
		if err != nil {
			w.log.Warn("bad tick", zap.Error(err), zap.ByteString("msg", trimForLog(msg)))
			continue
		}
		if t.Symbol == "" {
			t.Symbol = symbol
		}
		if t.Time.IsZero() {
			t.Time = time.Now().UTC()
		}
		emit(t)
	}
}

var ErrBadTick = errors.New("bad tick")

type wireTick struct {
	Symbol  string          `json:"symbol"`
	Price   decimal.Decimal `json:"price"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	BidSize int64           `json:"bidSize"`
	AskSize int64           `json:"askSize"`
	Time    wireTime        `json:"time"`
}

// wireTime accepts an RFC 3339 string, unix milliseconds, or anything
// else as unset.
type wireTime time.Time

func (w *wireTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*w = wireTime(t.UTC())
		}
		return nil
	}
	if ms, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*w = wireTime(time.UnixMilli(ms).UTC())
	}
	return nil
}

// DecodeTick parses one inbound tick message. Prices may be JSON numbers
// or strings. A message without a positive price is rejected.
func DecodeTick(msg []byte) (market.Tick, error) {
	var w wireTick
	if err := json.Unmarshal(msg, &w); err != nil {
		return market.Tick{}, fmt.Errorf("%w: %v", ErrBadTick, err)
	}
	t := market.Tick{
		Symbol:  strings.ToUpper(strings.TrimSpace(w.Symbol)),
		Price:   w.Price,
		Bid:     w.Bid,
		Ask:     w.Ask,
		BidSize: w.BidSize,
		AskSize: w.AskSize,
		Time:    time.Time(w.Time),
	}
	if !t.Valid() {
		return market.Tick{}, fmt.Errorf("%w: price %s", ErrBadTick, w.Price)
	}
	return t, nil
}

func trimForLog(b []byte) []byte {
	const n = 200
	if len(b) <= n {
		return b
	}
	return b[:n]
}
