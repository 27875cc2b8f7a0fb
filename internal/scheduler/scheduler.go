// Package scheduler runs the session's calendar jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultDayRoll fires at 04:00 New York time on weekdays, before the
// pre-market opens.
const DefaultDayRoll = "0 4 * * 1-5"

type DayRoller interface {
	RollDay(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// New returns a scheduler evaluating specs in loc (nil means UTC).
func New(loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		log:  log.Named("scheduler"),
	}
}

// Add registers job under a standard five-field cron spec. A failing run
// is logged; the schedule continues.
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(context.Background()); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Info("job ran", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// AddDayRoll zeroes the day P&L on spec.
func (s *Scheduler) AddDayRoll(spec string, r DayRoller) error {
	if spec == "" {
		spec = DefaultDayRoll
	}
	return s.Add("day-roll", spec, r.RollDay)
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", s.Entries()))
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}
