package feed

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pulse/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tick(p string) market.Tick {
	return market.Tick{Symbol: "TSLA", Price: d(p)}
}

func TestMailboxKeepsLatest(t *testing.T) {
	mb := NewMailbox()
	var drops int
	mb.OnDrop(func() { drops++ })

	mb.Put(tick("150"))
	mb.Put(tick("151"))
	mb.Put(tick("152"))

	got, err := mb.Take(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(d("152")))
	assert.Equal(t, uint64(2), mb.Dropped())
	assert.Equal(t, 2, drops)

	_, ok := mb.TryTake()
	assert.False(t, ok)
}

func TestMailboxTakeHonoursContext(t *testing.T) {
	mb := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mb.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPumpDeliversLastTick(t *testing.T) {
	src := SourceFunc(func(ctx context.Context, symbol string, emit func(market.Tick)) error {
		for _, p := range []string{"150", "151", "152"} {
			emit(market.Tick{Symbol: symbol, Price: d(p)})
		}
		return nil
	})

	var (
		mu  sync.Mutex
		got []market.Tick
	)
	err := Pump(context.Background(), src, "TSLA", func(_ context.Context, t market.Tick) {
		mu.Lock()
		got = append(got, t)
		mu.Unlock()
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	assert.True(t, got[len(got)-1].Price.Equal(d("152")))
}

func TestPumpCancelIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := SourceFunc(func(ctx context.Context, _ string, _ func(market.Tick)) error {
		<-ctx.Done()
		return ctx.Err()
	})
	go cancel()
	assert.NoError(t, Pump(ctx, src, "TSLA", func(context.Context, market.Tick) {}))
}

func TestDecodeTick(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want market.Tick
		err  bool
	}{
		{
			name: "numbers",
			msg:  `{"price":150.25,"bid":150.24,"ask":150.26,"bidSize":300}`,
			want: market.Tick{Price: d("150.25"), Bid: d("150.24"), Ask: d("150.26"), BidSize: 300},
		},
		{
			name: "strings and rfc3339",
			msg:  `{"symbol":"tsla","price":"150.25","time":"2026-03-02T15:00:00Z"}`,
			want: market.Tick{Symbol: "TSLA", Price: d("150.25"), Time: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)},
		},
		{
			name: "unix millis",
			msg:  `{"price":1,"time":1772463600000}`,
			want: market.Tick{Price: d("1"), Time: time.UnixMilli(1772463600000).UTC()},
		},
		{
			name: "local clock string ignored",
			msg:  `{"price":1,"time":"3:04:05 PM"}`,
			want: market.Tick{Price: d("1")},
		},
		{name: "zero price", msg: `{"price":0}`, err: true},
		{name: "not json", msg: `hello`, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTick([]byte(tt.msg))
			if tt.err {
				assert.ErrorIs(t, err, ErrBadTick)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Symbol, got.Symbol)
			assert.True(t, tt.want.Price.Equal(got.Price))
			assert.True(t, tt.want.Bid.Equal(got.Bid))
			assert.True(t, tt.want.Ask.Equal(got.Ask))
			assert.Equal(t, tt.want.BidSize, got.BidSize)
			assert.True(t, tt.want.Time.Equal(got.Time))
		})
	}
}

const replayCSV = `time,symbol,price,bid,ask,event,arg1
2026-03-02T14:30:00Z,TSLA,150.00,149.99,150.01
2026-03-02T14:30:01Z,AAPL,190.00,,
2026-03-02T14:30:02Z,TSLA,151.00,,,BUY
2026-03-02T14:30:03Z,TSLA,152.50,,,PARTIAL,50
`

func TestReplayEmitsTicksThenEvents(t *testing.T) {
	var order []string
	r := &Replay{
		Path: "inline",
		OnEvent: func(_ context.Context, ev Event) error {
			order = append(order, "event:"+ev.Name+strings.Join(ev.Args, ","))
			return nil
		},
	}
	err := r.Read(context.Background(), strings.NewReader(replayCSV), "tsla", func(t market.Tick) {
		order = append(order, "tick:"+t.Price.String())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tick:150", "tick:151", "event:BUY", "tick:152.5", "event:PARTIAL50"}, order)
}

func TestReplayRange(t *testing.T) {
	r := &Replay{
		From: time.Date(2026, 3, 2, 14, 30, 1, 0, time.UTC),
		To:   time.Date(2026, 3, 2, 14, 30, 3, 0, time.UTC),
	}
	var got []market.Tick
	err := r.Read(context.Background(), strings.NewReader(replayCSV), "", func(t market.Tick) { got = append(got, t) })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.True(t, got[1].Price.Equal(d("151")))
}

func TestReplayBadRows(t *testing.T) {
	r := &Replay{Path: "bad.csv"}
	err := r.Read(context.Background(), strings.NewReader("yesterday,TSLA,150\n"), "", func(market.Tick) {})
	assert.ErrorContains(t, err, "line 1")

	err = r.Read(context.Background(), strings.NewReader("2026-03-02T14:30:00Z,TSLA,abc\n"), "", func(market.Tick) {})
	assert.ErrorContains(t, err, "bad price")
}

func TestReplayEventErrorStops(t *testing.T) {
	boom := errors.New("boom")
	r := &Replay{OnEvent: func(context.Context, Event) error { return boom }}
	err := r.Read(context.Background(), strings.NewReader(replayCSV), "TSLA", func(market.Tick) {})
	assert.ErrorIs(t, err, boom)
}

func TestSyntheticWalk(t *testing.T) {
	s := NewSynthetic(d("150"), 42)
	walk := s.walker(rand.New(rand.NewSource(42)))

	prev := walk()
	assert.True(t, prev.Price.GreaterThanOrEqual(d("149.75")))
	assert.True(t, prev.Price.LessThan(d("170.25")))
	for i := 0; i < 200; i++ {
		next := walk()
		step := next.Price.Sub(prev.Price).Abs()
		assert.True(t, step.LessThanOrEqual(d("0.26")), "step %s", step)
		assert.True(t, next.Bid.Equal(next.Price.Sub(d("0.01"))))
		assert.True(t, next.Ask.Equal(next.Price.Add(d("0.01"))))
		prev = next
	}
}

func TestSyntheticRunIsSeeded(t *testing.T) {
	run := func() []market.Tick {
		s := NewSynthetic(d("150"), 7)
		s.Interval = time.Millisecond
		var got []market.Tick
		ctx, cancel := context.WithCancel(context.Background())
		_ = s.Run(ctx, "TSLA", func(t market.Tick) {
			if len(got) < 5 {
				got = append(got, t)
			}
			if len(got) == 5 {
				cancel()
			}
		})
		return got
	}
	a, b := run(), run()
	require.Len(t, a, 5)
	require.Len(t, b, 5)
	for i := range a {
		assert.True(t, a[i].Price.Equal(b[i].Price))
		assert.Equal(t, "TSLA", a[i].Symbol)
	}
}

func TestFallbackSwitches(t *testing.T) {
	down := errors.New("connection refused")
	var switched error
	f := &Fallback{
		Primary: SourceFunc(func(context.Context, string, func(market.Tick)) error { return down }),
		Secondary: SourceFunc(func(_ context.Context, symbol string, emit func(market.Tick)) error {
			emit(market.Tick{Symbol: symbol, Price: d("1")})
			return nil
		}),
		OnSwitch: func(err error) { switched = err },
	}

	var got []market.Tick
	require.NoError(t, f.Run(context.Background(), "TSLA", func(t market.Tick) { got = append(got, t) }))
	assert.Len(t, got, 1)
	assert.ErrorIs(t, switched, down)
}

func TestWebSocketSource(t *testing.T) {
	upgrader := websocket.Upgrader{}
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range []string{`{"price":150.5}`, `garbage`, `{"price":"151","bid":"150.99"}`} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// wait for the client to hang up
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []market.Tick
	err := ws.Run(ctx, "TSLA", func(t market.Tick) {
		got = append(got, t)
		if len(got) == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "/ws/TSLA", <-paths)
	require.Len(t, got, 2)
	assert.Equal(t, "TSLA", got[0].Symbol)
	assert.False(t, got[0].Time.IsZero())
	assert.True(t, got[1].Bid.Equal(d("150.99")))
}

func TestWebSocketDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	err := ws.Run(context.Background(), "TSLA", func(market.Tick) {})
	assert.ErrorContains(t, err, "http 404")
}
