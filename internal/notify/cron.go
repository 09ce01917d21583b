package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/m3rciful/lifeweeks/core/logger"
)

// Runner is the pair of job entry points driven by the scheduler.
type Runner interface {
	RunWeekly(ctx context.Context) (Summary, error)
	RunDaily(ctx context.Context) (Summary, error)
}

// CronOptions configures the schedule. Specs use the standard five-field cron syntax.
type CronOptions struct {
	Weekly   string
	Daily    string
	Location *time.Location
}

// Cron triggers the jobs on their schedules. A run still in progress when its
// next trigger fires causes that trigger to be skipped.
type Cron struct {
	c       *cron.Cron
	entries map[string]cron.EntryID
}

// NewCron registers both jobs. Invalid specs are reported as errors.
func NewCron(jobs Runner, opts CronOptions) (*Cron, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	sc := &Cron{c: c, entries: make(map[string]cron.EntryID, 2)}
	specs := []struct {
		job  string
		spec string
		run  func(context.Context) (Summary, error)
	}{
		{JobWeekly, opts.Weekly, jobs.RunWeekly},
		{JobDaily, opts.Daily, jobs.RunDaily},
	}
	for _, s := range specs {
		run := s.run
		job := s.job
		id, err := c.AddFunc(s.spec, func() { Trigger(job, run) })
		if err != nil {
			return nil, fmt.Errorf("notify: schedule %s %q: %w", s.job, s.spec, err)
		}
		sc.entries[s.job] = id
	}
	return sc, nil
}

// Start begins firing jobs in the background.
func (s *Cron) Start() {
	s.c.Start()
	for job, id := range s.entries {
		logger.SCHED.Info("job scheduled",
			slog.String("event", "job.scheduled"),
			slog.String("job", job),
			slog.Time("next", s.c.Entry(id).Next),
		)
	}
}

// Next returns the next fire time of job; zero before Start or for unknown jobs.
func (s *Cron) Next(job string) time.Time {
	id, ok := s.entries[job]
	if !ok {
		return time.Time{}
	}
	return s.c.Entry(id).Next
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Cron) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify: waiting for running jobs: %w", ctx.Err())
	}
}

// Trigger runs one job with a fresh context carrying a new run id.
func Trigger(job string, run func(context.Context) (Summary, error)) (Summary, error) {
	ctx := logger.WithRID(context.Background(), job+"-"+uuid.NewString())
	ctx = logger.WithJob(ctx, job)
	logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "job.started")
	sum, err := run(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.SCHED, slog.LevelError, "job.failed",
			slog.String("status", logger.Status(err)),
			slog.String("err", err.Error()),
		)
	}
	return sum, err
}

// cronLogger routes robfig/cron's internal logging to the scheduler component.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if !logger.DebugEnabled() {
		return
	}
	logger.SCHED.Debug(msg, append([]interface{}{"event", "cron.info"}, keysAndValues...)...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"event", "cron.error", "err", err.Error()}, keysAndValues...)
	logger.SCHED.Error(msg, args...)
}
