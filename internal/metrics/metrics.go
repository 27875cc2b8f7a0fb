// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/pulse/autoexec"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
)

// Metrics holds every collector. It satisfies sim.Metrics.
type Metrics struct {
	reg *prometheus.Registry

	OrdersTotal        *prometheus.CounterVec
	RejectionsTotal    *prometheus.CounterVec
	ClosedTotal        *prometheus.CounterVec
	RealizedPnL        *prometheus.HistogramVec
	PersistenceErrors  prometheus.Counter
	TicksTotal         prometheus.Counter
	StaleTicks         prometheus.Counter
	SignalsTotal       *prometheus.CounterVec
	EventsDropped      prometheus.Counter
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		OrdersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_orders_total",
			Help: "Orders filled, by side",
		}, []string{"side"}),
		RejectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_order_rejections_total",
			Help: "Orders rejected, by error kind",
		}, []string{"kind"}),
		ClosedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_positions_closed_total",
			Help: "Positions closed, by reason",
		}, []string{"reason"}),
		RealizedPnL: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_realized_pnl_dollars",
			Help:    "Realized P&L per closed position",
			Buckets: []float64{-1000, -500, -250, -100, -50, 0, 50, 100, 250, 500, 1000},
		}, []string{"reason"}),
		PersistenceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "pulse_persistence_errors_total",
			Help: "Account saves that failed",
		}),
		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "pulse_ticks_total",
			Help: "Ticks processed by the engine",
		}),
		StaleTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "pulse_stale_ticks_total",
			Help: "Ticks replaced in the feed mailbox before processing",
		}),
		SignalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_signals_total",
			Help: "Signals evaluated by the auto-execution trigger, by outcome",
		}, []string{"outcome"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "pulse_events_dropped_total",
			Help: "Outbound events dropped because the hub buffer was full",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) OrderFilled(side market.Side) {
	m.OrdersTotal.WithLabelValues(string(side)).Inc()
}

func (m *Metrics) OrderRejected(kind string) {
	m.RejectionsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) PositionClosed(reason ledger.Reason, pnl float64) {
	m.ClosedTotal.WithLabelValues(string(reason)).Inc()
	m.RealizedPnL.WithLabelValues(string(reason)).Observe(pnl)
}

func (m *Metrics) PersistenceFailed() { m.PersistenceErrors.Inc() }

func (m *Metrics) TickProcessed() { m.TicksTotal.Inc() }

func (m *Metrics) TickDropped() { m.StaleTicks.Inc() }

func (m *Metrics) EventDropped() { m.EventsDropped.Inc() }

// SignalEvaluated is an autoexec observer.
func (m *Metrics) SignalEvaluated(res autoexec.Result) {
	m.SignalsTotal.WithLabelValues(string(res.Outcome)).Inc()
}

// WatchClients exports the hub's client count as a gauge read at scrape
// time.
func (m *Metrics) WatchClients(count func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pulse_websocket_clients",
		Help: "Number of connected WebSocket clients",
	}, func() float64 { return float64(count()) })
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records request metrics labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// route pattern keeps the label set bounded
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestSeconds.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
