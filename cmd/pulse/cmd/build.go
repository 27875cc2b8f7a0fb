package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/autoexec"
	"github.com/rustyeddy/pulse/config"
	"github.com/rustyeddy/pulse/events"
	"github.com/rustyeddy/pulse/internal/api"
	"github.com/rustyeddy/pulse/internal/metrics"
	"github.com/rustyeddy/pulse/journal"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/session"
	"github.com/rustyeddy/pulse/signal"
	"github.com/rustyeddy/pulse/sim"
	"github.com/rustyeddy/pulse/store"
)

// desk is one fully wired session and everything it owns.
type desk struct {
	cfg     *config.Config
	log     *zap.Logger
	ledger  *ledger.Ledger
	engine  *sim.Engine
	arm     *arming.Machine
	sess    *session.Session
	metrics *metrics.Metrics
	journal journal.Journal
	history api.TradeHistory
	closers []func() error
}

type deskOptions struct {
	store     store.Options
	publisher events.Publisher
	registry  *prometheus.Registry
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Type: cfg.Store.Type,
		Path: cfg.Store.Path,
		URL:  cfg.Store.URL,
		Key:  cfg.Store.Key,
	}
}

func openJournal(cfg config.JournalConfig) (journal.Journal, api.TradeHistory, error) {
	switch cfg.Type {
	case "csv":
		j, err := journal.NewCSV(cfg.TradesFile, cfg.EquityFile)
		return j, nil, err
	case "sqlite":
		j, err := journal.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return j, j, nil
	}
	return journal.Nop{}, nil, nil
}

func buildDesk(ctx context.Context, cfg *config.Config, log *zap.Logger, opts deskOptions) (*desk, error) {
	d := &desk{cfg: cfg, log: log}

	st, closeStore, err := store.Open(ctx, opts.store)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, closeStore)

	j, history, err := openJournal(cfg.Journal)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	d.journal, d.history = j, history
	d.closers = append(d.closers, j.Close)

	d.ledger = ledger.New(st,
		ledger.WithStartingBalance(cfg.Account.StartingBalance),
		ledger.WithLogger(log))
	d.ledger.Load(ctx)

	reg := opts.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	d.metrics = metrics.New(reg)

	pub := opts.publisher
	if pub == nil {
		pub = events.Nop{}
	}

	var slip sim.Slippage = sim.NoSlippage{}
	if cfg.Execution.MaxSlippage.IsPositive() {
		slip = sim.NewRandomSlippage(cfg.Execution.MaxSlippage, cfg.Execution.SlippageSeed)
	}

	initial, _ := arming.ParseState(cfg.Session.Arming)
	d.arm = arming.New(initial)

	d.engine = sim.NewEngine(d.ledger, d.arm,
		sim.WithJournal(j),
		sim.WithPublisher(pub),
		sim.WithSlippage(slip),
		sim.WithMetrics(d.metrics),
		sim.WithLogger(log))

	trigger := autoexec.New(d.engine, d.arm,
		autoexec.WithEnabled(cfg.AutoExec.Enabled),
		autoexec.WithTimeframes(cfg.AutoExec.Timeframes...),
		autoexec.WithObserver(d.metrics.SignalEvaluated),
		autoexec.WithLogger(log))

	var gen *signal.Generator
	if cfg.Signals.Enabled {
		gen, err = signal.NewGenerator(cfg.Session.Symbol, cfg.Signals.Timeframes, cfg.Signals.ATRPeriod, cfg.Signals.Multiplier)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("signals: %w", err)
		}
	}

	d.sess = session.New(session.Config{
		Symbol: cfg.Session.Symbol,
		Ticket: session.Ticket{
			RiskAmount: cfg.Session.RiskAmount,
			Stop:       cfg.Session.Stop,
			Target:     cfg.Session.Target,
		},
		TrailFraction: cfg.Execution.TrailFraction,
	}, session.Deps{
		Engine:    d.engine,
		Ledger:    d.ledger,
		Arming:    d.arm,
		Trigger:   trigger,
		Signals:   gen,
		Publisher: pub,
		Logger:    log,
	})
	return d, nil
}

// Close releases the journal and the store, last opened first.
func (d *desk) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
