package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/pulse/events"
	"github.com/rustyeddy/pulse/feed"
	"github.com/rustyeddy/pulse/journal"
	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/session"
	"github.com/rustyeddy/pulse/signal"
)

var replayCmd = &cobra.Command{
	Use:   "replay <ticks.csv>",
	Short: "Replay a tick CSV through a fresh paper account",
	Long: `Replay recorded ticks, and optional scripted commands, through the desk.

Rows are time,symbol,price,bid,ask followed by an optional command and
its arguments, applied after the row's tick:

  STAGE | ARM | DISARM | BUY | SELL | CLOSE | BE | TRAIL | KILL | RESET
  PARTIAL <percent>
  TICKET <risk> <stop> [target]
  SIGNAL <up|down> <timeframe> [stop]
  SYMBOL <symbol>

The account starts from account.starting_balance in memory; the stored
account is never touched.

Examples:
  pulse replay data/tsla.csv --arm
  pulse replay data/tsla.csv --symbol TSLA --speed 10 --db replay.db`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replaySymbol   string
	replayDBPath   string
	replaySpeed    float64
	replayArm      bool
	replayCloseEnd bool
	replayFrom     string
	replayTo       string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replaySymbol, "symbol", "s", "", "symbol to replay (defaults to session.symbol)")
	replayCmd.Flags().StringVarP(&replayDBPath, "db", "d", "", "SQLite journal path; no journal when empty")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "replay speed multiple, 0 for as fast as possible")
	replayCmd.Flags().BoolVar(&replayArm, "arm", false, "arm the desk before the first tick")
	replayCmd.Flags().BoolVar(&replayCloseEnd, "close-end", true, "close the open position at end")
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "skip rows before this RFC3339 time")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "stop at rows from this RFC3339 time")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if replaySymbol != "" {
		cfg.Session.Symbol = strings.ToUpper(replaySymbol)
	}
	cfg.Journal.Type = "none"
	if replayDBPath != "" {
		cfg.Journal.Type, cfg.Journal.DBPath = "sqlite", replayDBPath
	}

	ctx := context.Background()
	d, err := buildDesk(ctx, cfg, log, deskOptions{publisher: events.Func(printToast)})
	if err != nil {
		return err
	}
	defer d.Close()

	if replayArm && !d.arm.Armed() {
		d.arm.Disarm()
		d.sess.ToggleStaged()
		if _, err := d.sess.ToggleArm(); err != nil {
			return err
		}
	}

	rp := feed.NewReplay(args[0])
	rp.Speed = replaySpeed
	if rp.From, err = parseBound(replayFrom); err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	if rp.To, err = parseBound(replayTo); err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	rp.OnEvent = func(ctx context.Context, ev feed.Event) error {
		return applyReplayEvent(ctx, d.sess, ev)
	}

	fmt.Printf("Replaying %s for %s\n", args[0], d.sess.Symbol())
	emit := func(t market.Tick) { d.sess.HandleTick(ctx, t) }
	if err := rp.Run(ctx, d.sess.Symbol(), emit); err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if replayCloseEnd {
		if _, err := d.sess.ClosePosition(ctx); err != nil {
			return fmt.Errorf("close at end: %w", err)
		}
	}

	acct := d.ledger.Snapshot()
	sum := journal.Summarize(acct.Trades)
	fmt.Printf("\nFinal Results:\n")
	fmt.Printf("  Balance:   $%s\n", acct.Balance.StringFixed(2))
	fmt.Printf("  Net P/L:   $%s\n", sum.NetPL.StringFixed(2))
	fmt.Printf("  Trades:    %d (%d wins, %d losses)\n", sum.Trades, sum.Wins, sum.Losses)
	if sum.Trades > 0 {
		fmt.Printf("  Win rate:  %s%%\n", sum.WinRate.StringFixed(1))
	}
	if replayDBPath != "" {
		fmt.Printf("\nResults saved to: %s\n", replayDBPath)
	}
	return nil
}

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

var errReplayCommand = errors.New("bad replay command")

// applyReplayEvent runs one scripted command. Rejections by the desk are
// already toasted and do not stop the replay; malformed commands do.
func applyReplayEvent(ctx context.Context, sess *session.Session, ev feed.Event) error {
	need := func(n int) error {
		if len(ev.Args) < n {
			return fmt.Errorf("%w: %s needs %d argument(s)", errReplayCommand, ev.Name, n)
		}
		return nil
	}
	dec := func(i int) (decimal.Decimal, error) {
		if i >= len(ev.Args) || ev.Args[i] == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(ev.Args[i])
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", errReplayCommand, ev.Name, err)
		}
		return v, nil
	}

	switch strings.ToUpper(ev.Name) {
	case "STAGE":
		sess.ToggleStaged()
	case "ARM":
		sess.ToggleArm()
	case "DISARM":
		sess.Disarm()
	case "BUY":
		sess.SubmitOrder(ctx, market.Buy)
	case "SELL":
		sess.SubmitOrder(ctx, market.Sell)
	case "CLOSE":
		sess.ClosePosition(ctx)
	case "PARTIAL":
		if err := need(1); err != nil {
			return err
		}
		pct, err := dec(0)
		if err != nil {
			return err
		}
		sess.ClosePartial(ctx, pct)
	case "BE":
		sess.MoveStopToBreakeven(ctx)
	case "TRAIL":
		sess.TrailStop(ctx)
	case "KILL":
		sess.KillSwitch(ctx)
	case "RESET":
		sess.ResetAccount(ctx, true)
	case "TICKET":
		if err := need(2); err != nil {
			return err
		}
		var t session.Ticket
		var err error
		if t.RiskAmount, err = dec(0); err != nil {
			return err
		}
		if t.Stop, err = dec(1); err != nil {
			return err
		}
		if t.Target, err = dec(2); err != nil {
			return err
		}
		sess.SetTicket(t)
	case "SIGNAL":
		if err := need(2); err != nil {
			return err
		}
		dir, err := signal.ParseDirection(ev.Args[0])
		if err != nil {
			return fmt.Errorf("%w: %v", errReplayCommand, err)
		}
		stop, err := dec(2)
		if err != nil {
			return err
		}
		sess.HandleSignal(ctx, signal.Signal{
			Symbol:    sess.Symbol(),
			Timeframe: ev.Args[1],
			Direction: dir,
			Stop:      stop,
			Time:      ev.Time,
			Source:    "replay",
		})
	case "SYMBOL":
		if err := need(1); err != nil {
			return err
		}
		sess.SetSymbol(ev.Args[0])
	default:
		return fmt.Errorf("%w: unknown command %q", errReplayCommand, ev.Name)
	}
	return nil
}
