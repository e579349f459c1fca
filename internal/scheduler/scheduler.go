package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	errwrap "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/clicktriage/clicktriage/internal/collector"
)

// Collector is one collection pass. Failures are carried inside the
// returned stats, so a run never aborts the schedule.
type Collector interface {
	Collect(ctx context.Context) collector.Stats
}

// Monitor drives repeated collection runs at a fixed interval. Runs
// never overlap: if a pass outlasts the interval, the next one is
// rescheduled rather than stacked.
type Monitor struct {
	cfg       Config
	collector Collector
	sched     gocron.Scheduler
	log       *zap.Logger
}

// Config holds the monitor loop's parameters.
type Config struct {
	Interval time.Duration
}

func New(cfg Config, c Collector, log *zap.Logger) (*Monitor, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errwrap.Wrap(err, "scheduler.New")
	}
	return &Monitor{cfg: cfg, collector: c, sched: sched, log: log}, nil
}

// Start schedules the collection job and begins running it. The first
// pass fires immediately; subsequent passes follow the interval.
func (m *Monitor) Start(ctx context.Context) error {
	_, err := m.sched.NewJob(
		gocron.DurationJob(m.cfg.Interval),
		gocron.NewTask(func() { m.runOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errwrap.Wrap(err, "Monitor.Start")
	}

	m.sched.Start()
	m.log.Info("monitor started", zap.Duration("interval", m.cfg.Interval))
	return nil
}

// Shutdown stops the schedule and waits for an in-flight run to finish.
func (m *Monitor) Shutdown() error {
	if err := m.sched.Shutdown(); err != nil {
		return errwrap.Wrap(err, "Monitor.Shutdown")
	}
	m.log.Info("monitor stopped")
	return nil
}

func (m *Monitor) runOnce(ctx context.Context) {
	stats := m.collector.Collect(ctx)
	fields := []zap.Field{
		zap.String("run_id", stats.RunID),
		zap.Int("total_seen", stats.TotalSeen),
		zap.Int("slow_found", stats.SlowFound),
		zap.Int("new_cases", stats.NewCases),
		zap.Int("errors", stats.Errors),
	}
	if stats.Errors > 0 {
		m.log.Warn("collection run finished with errors", fields...)
		return
	}
	m.log.Info("collection run finished", fields...)
}
