package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/config"
	"github.com/rustyeddy/pulse/events"
	"github.com/rustyeddy/pulse/feed"
	"github.com/rustyeddy/pulse/internal/api"
	"github.com/rustyeddy/pulse/internal/scheduler"
	"github.com/rustyeddy/pulse/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading desk with its HTTP and websocket API",
	Long: `Run the paper-trading desk.

Ticks come from the websocket feed in feed.url, falling back to a
synthetic random walk when the feed fails or feed.use_simulation is set.
The terminal API listens on server.addr; events stream on /api/v1/ws.

Example:
  pulse run -c pulse.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(log)
	d, err := buildDesk(ctx, cfg, log, deskOptions{store: storeOptions(cfg), publisher: hub})
	if err != nil {
		return err
	}
	defer d.Close()

	hub.OnDrop(d.metrics.EventDropped)
	d.metrics.WatchClients(hub.Clients)
	go hub.Run(ctx)

	sched := scheduler.New(loc, log)
	if err := sched.AddDayRoll(cfg.Session.DayRoll, d.sess); err != nil {
		return err
	}
	sched.Start()

	opts := []api.Option{api.WithHub(hub), api.WithMetrics(d.metrics), api.WithLogger(log)}
	if d.history != nil {
		opts = append(opts, api.WithHistory(d.history, loc))
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(d.sess, opts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	mb := feed.NewMailbox()
	mb.OnDrop(d.metrics.TickDropped)
	feedDone := make(chan error, 1)
	go func() {
		feedDone <- followSymbol(ctx, d.sess, tickSource(cfg, hub, log), mb, log)
	}()

	log.Info("desk running",
		zap.String("session", d.sess.ID()),
		zap.String("symbol", d.sess.Symbol()),
		zap.String("arming", string(d.arm.State())),
		zap.String("balance", d.ledger.Balance().StringFixed(2)))

	select {
	case <-ctx.Done():
	case err = <-srvErr:
	}
	stop()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Shutdown())
	defer cancel()
	if serr := srv.Shutdown(sctx); serr != nil {
		log.Warn("http shutdown", zap.Error(serr))
	}
	sched.Stop(sctx)
	<-feedDone
	return err
}

// tickSource picks the live feed with a synthetic fallback, or the
// synthetic walk alone.
func tickSource(cfg *config.Config, pub events.Publisher, log *zap.Logger) feed.Source {
	synth := feed.NewSynthetic(cfg.Feed.SyntheticBase, cfg.Feed.Seed)
	if cfg.Feed.UseSimulation || cfg.Feed.URL == "" {
		log.Info("using synthetic prices")
		return synth
	}
	return &feed.Fallback{
		Primary:   feed.NewWebSocket(cfg.Feed.URL, log),
		Secondary: synth,
		Log:       log,
		OnSwitch: func(err error) {
			pub.Publish(events.New(events.KindToast, events.Toast{
				Severity: events.Warning,
				Message:  "Price feed lost - using simulated prices",
			}))
		},
	}
}

// followSymbol pumps ticks for the session's active symbol and restarts
// the source whenever the symbol changes. A source that fails is retried
// after a pause.
func followSymbol(ctx context.Context, sess *session.Session, src feed.Source, mb *feed.Mailbox, log *zap.Logger) error {
	const (
		poll  = time.Second
		retry = 5 * time.Second
	)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		symbol := sess.Symbol()
		pctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- feed.Pump(pctx, src, symbol, sess.HandleTick, feed.WithMailbox(mb), feed.WithPumpLogger(log))
		}()

		var wait time.Duration
	watch:
		for {
			select {
			case <-ctx.Done():
				cancel()
				<-done
				return nil
			case err := <-done:
				if err != nil {
					log.Error("feed stopped", zap.String("symbol", symbol), zap.Error(err))
				}
				wait = retry
				break watch
			case <-ticker.C:
				if next := sess.Symbol(); next != symbol {
					log.Info("switching feed", zap.String("from", symbol), zap.String("to", next))
					cancel()
					<-done
					break watch
				}
			}
		}
		cancel()

		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
	}
}

func printToast(ev events.Event) {
	if t, ok := ev.Data.(events.Toast); ok {
		fmt.Printf("[%s] %s\n", t.Severity, t.Message)
	}
}
