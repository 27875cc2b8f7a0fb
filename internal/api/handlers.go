package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/autoexec"
	"github.com/rustyeddy/pulse/feed"
	"github.com/rustyeddy/pulse/journal"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/session"
	"github.com/rustyeddy/pulse/signal"
	"github.com/rustyeddy/pulse/sim"
)

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Snapshot())
}

// GET /api/v1/sizing?side=SELL
func (s *Server) getSizing(w http.ResponseWriter, r *http.Request) {
	side := market.Buy
	if q := r.URL.Query().Get("side"); q != "" {
		var err error
		if side, err = parseSide(q); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.sess.Sizing(side))
}

func (s *Server) putTicket(w http.ResponseWriter, r *http.Request) {
	var t session.Ticket
	if !decode(w, r, &t) {
		return
	}
	res, err := s.sess.SetTicket(t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) putSymbol(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.sess.SetSymbol(req.Symbol); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, symbolRequest{Symbol: s.sess.Symbol()})
}

type orderRequest struct {
	Side string `json:"side"`
}

func (s *Server) postOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decode(w, r, &req) {
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, err)
		return
	}
	fill, err := s.sess.SubmitOrder(r.Context(), side)
	writeResult(w, http.StatusCreated, fill, err)
}

type closeResponse struct {
	Closed *ledger.TradeRecord `json:"closed"`
}

func (s *Server) closePosition(w http.ResponseWriter, r *http.Request) {
	rec, err := s.sess.ClosePosition(r.Context())
	writeResult(w, http.StatusOK, closeResponse{Closed: rec}, err)
}

type partialRequest struct {
	Percent decimal.Decimal `json:"percent"`
}

func (s *Server) closePartial(w http.ResponseWriter, r *http.Request) {
	var req partialRequest
	if !decode(w, r, &req) {
		return
	}
	pf, err := s.sess.ClosePartial(r.Context(), req.Percent)
	writeResult(w, http.StatusOK, pf, err)
}

func (s *Server) breakeven(w http.ResponseWriter, r *http.Request) {
	pos, err := s.sess.MoveStopToBreakeven(r.Context())
	writeResult(w, http.StatusOK, pos, err)
}

func (s *Server) trail(w http.ResponseWriter, r *http.Request) {
	res, err := s.sess.TrailStop(r.Context())
	writeResult(w, http.StatusOK, res, err)
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) resetAccount(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.sess.ResetAccount(r.Context(), req.Confirm)
	writeResult(w, http.StatusOK, s.sess.Snapshot().Account, err)
}

type armingResponse struct {
	State arming.State `json:"state"`
}

func (s *Server) toggleStaged(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, armingResponse{State: s.sess.ToggleStaged()})
}

func (s *Server) toggleArm(w http.ResponseWriter, _ *http.Request) {
	st, err := s.sess.ToggleArm()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, armingResponse{State: st})
}

type killResponse struct {
	Closed []ledger.TradeRecord `json:"closed"`
}

func (s *Server) kill(w http.ResponseWriter, r *http.Request) {
	recs, err := s.sess.KillSwitch(r.Context())
	if recs == nil {
		recs = []ledger.TradeRecord{}
	}
	writeResult(w, http.StatusOK, killResponse{Closed: recs}, err)
}

type autoExecRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) putAutoExec(w http.ResponseWriter, r *http.Request) {
	var req autoExecRequest
	if !decode(w, r, &req) {
		return
	}
	s.sess.SetAutoExec(req.Enabled)
	writeJSON(w, http.StatusOK, req)
}

type signalRequest struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Direction string          `json:"direction"`
	Stop      decimal.Decimal `json:"stop"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
}

type signalResponse struct {
	Outcome autoexec.Outcome `json:"outcome"`
	Fill    *sim.Fill        `json:"fill,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// postSignal always answers 200 once the body parses: an ignored or
// rejected signal is a normal outcome, not a failed request.
func (s *Server) postSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if !decode(w, r, &req) {
		return
	}
	dir, err := signal.ParseDirection(req.Direction)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: sim.KindValidation.String()})
		return
	}
	source := req.Source
	if source == "" {
		source = "http"
	}
	res := s.sess.HandleSignal(r.Context(), signal.Signal{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Direction: dir,
		Stop:      req.Stop,
		Price:     req.Price,
		Time:      time.Now().UTC(),
		Source:    source,
	})

	out := signalResponse{Outcome: res.Outcome, Fill: res.Fill}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

// postTick injects one tick, in the same JSON shape the websocket feed
// accepts.
func (s *Server) postTick(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: sim.KindValidation.String()})
		return
	}
	t, err := feed.DecodeTick(buf)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: sim.KindValidation.String()})
		return
	}
	s.sess.HandleTick(r.Context(), t)
	w.WriteHeader(http.StatusAccepted)
}

// GET /api/v1/journal/trades?day=2026-03-02
func (s *Server) journalTrades(w http.ResponseWriter, r *http.Request) {
	trades, _, ok := s.dayTrades(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// GET /api/v1/journal/report?day=2026-03-02 answers the org-mode day
// report as text/plain.
func (s *Server) journalReport(w http.ResponseWriter, r *http.Request) {
	trades, day, ok := s.dayTrades(w, r)
	if !ok {
		return
	}
	text, err := journal.NewDayReport(day, trades).Org()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) dayTrades(w http.ResponseWriter, r *http.Request) ([]ledger.TradeRecord, time.Time, bool) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "journal is not enabled", Kind: "internal"})
		return nil, time.Time{}, false
	}

	day := time.Now().In(s.loc)
	if q := r.URL.Query().Get("day"); q != "" {
		var err error
		if day, err = time.ParseInLocation("2006-01-02", q, s.loc); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("bad day %q", q), Kind: sim.KindValidation.String()})
			return nil, time.Time{}, false
		}
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	trades, err := s.history.ListTradesClosedBetween(start, start.AddDate(0, 0, 1))
	if err != nil {
		writeError(w, err)
		return nil, time.Time{}, false
	}
	if trades == nil {
		trades = []ledger.TradeRecord{}
	}
	return trades, start, true
}

func parseSide(s string) (market.Side, error) {
	side, err := market.ParseSide(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sim.ErrInvalidSide, err)
	}
	return side, nil
}
