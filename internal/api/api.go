// Package api is the HTTP surface of a running session.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/internal/metrics"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/session"
	"github.com/rustyeddy/pulse/sim"
)

// TradeHistory is the journal read side used by the /journal routes.
type TradeHistory interface {
	ListTradesClosedBetween(start, end time.Time) ([]ledger.TradeRecord, error)
}

type Server struct {
	sess    *session.Session
	hub     http.Handler
	metrics *metrics.Metrics
	history TradeHistory
	loc     *time.Location
	log     *zap.Logger
}

type Option func(*Server)

// WithHub serves the event stream at /api/v1/ws.
func WithHub(h http.Handler) Option {
	return func(s *Server) { s.hub = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithHistory(h TradeHistory, loc *time.Location) Option {
	return func(s *Server) {
		s.history = h
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func New(sess *session.Session, opts ...Option) *Server {
	s := &Server{sess: sess, loc: time.UTC, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.requestLog)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "pulse"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.hub != nil {
			r.Get("/ws", s.hub.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/session", s.getSession)
			r.Get("/sizing", s.getSizing)
			r.Put("/ticket", s.putTicket)
			r.Put("/symbol", s.putSymbol)

			r.Post("/orders", s.postOrder)
			r.Post("/position/close", s.closePosition)
			r.Post("/position/partial", s.closePartial)
			r.Post("/position/breakeven", s.breakeven)
			r.Post("/position/trail", s.trail)

			r.Post("/account/reset", s.resetAccount)
			r.Post("/arming/stage", s.toggleStaged)
			r.Post("/arming/arm", s.toggleArm)
			r.Post("/kill", s.kill)
			r.Put("/autoexec", s.putAutoExec)

			r.Post("/signals", s.postSignal)
			r.Post("/ticks", s.postTick)

			r.Get("/journal/trades", s.journalTrades)
			r.Get("/journal/report", s.journalReport)
		})
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// cors lets a browser terminal on another origin drive the API.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch session.KindOf(err) {
	case sim.KindValidation:
		return http.StatusBadRequest
	case sim.KindPrecondition:
		return http.StatusConflict
	case sim.KindCapital:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorResponse{Error: err.Error(), Kind: session.KindOf(err).String()})
}

// writeResult writes v, or the error when the operation did not happen.
// A save failure after a completed operation is reported in a Warning
// header and the result is still returned.
func writeResult(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		if !errors.Is(err, ledger.ErrPersistence) {
			writeError(w, err)
			return
		}
		w.Header().Set("Warning", `199 pulse "account could not be saved"`)
	}
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decode reads a JSON body into v and answers 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  sim.KindValidation.String(),
		})
		return false
	}
	return true
}
