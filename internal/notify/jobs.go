// Package notify runs the weekly statistics and daily greeting jobs over all
// registered users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/lifeweeks/core/logger"
	"github.com/m3rciful/lifeweeks/core/telegram/sender"
	"github.com/m3rciful/lifeweeks/internal/lifespan"
	"github.com/m3rciful/lifeweeks/internal/users"
)

// Job names used in logs, metrics and admin commands.
const (
	JobWeekly = "weekly"
	JobDaily  = "daily"
)

const (
	defaultWorkers = 4
	defaultTimeout = 10 * time.Second
)

// Sender delivers a plain-text message to a user.
type Sender interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Scanner lists every registered user.
type Scanner interface {
	ScanAll(ctx context.Context) ([]users.Record, error)
}

// Summary describes one job run.
type Summary struct {
	Job      string
	Users    int
	Sent     int
	Failed   int
	Duration time.Duration
}

// Options wires the jobs' collaborators.
type Options struct {
	Users   Scanner
	Sender  Sender
	Catalog *lifespan.Catalog
	Metrics *Metrics
	// Workers bounds concurrent deliveries within one run.
	Workers int
	// Timeout bounds each delivery.
	Timeout time.Duration
	Now     func() time.Time
}

// Jobs holds the two notification entry points. It keeps no state between runs.
type Jobs struct {
	users   Scanner
	sender  Sender
	catalog *lifespan.Catalog
	metrics *Metrics
	workers int
	timeout time.Duration
	now     func() time.Time
}

// NewJobs validates opts and applies defaults.
func NewJobs(opts Options) (*Jobs, error) {
	if opts.Users == nil || opts.Sender == nil || opts.Catalog == nil {
		return nil, errors.New("notify: users, sender and catalog are required")
	}
	j := &Jobs{
		users:   opts.Users,
		sender:  opts.Sender,
		catalog: opts.Catalog,
		metrics: opts.Metrics,
		workers: opts.Workers,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
	if j.workers <= 0 {
		j.workers = defaultWorkers
	}
	if j.timeout <= 0 {
		j.timeout = defaultTimeout
	}
	if j.now == nil {
		j.now = time.Now
	}
	return j, nil
}

// RunWeekly sends every registered user their weeks statistics.
func (j *Jobs) RunWeekly(ctx context.Context) (Summary, error) {
	now := j.now()
	return j.run(ctx, JobWeekly, func(rec users.Record) (string, error) {
		return RenderStats(rec, j.catalog, now)
	})
}

// RunDaily sends every registered user the morning greeting.
func (j *Jobs) RunDaily(ctx context.Context) (Summary, error) {
	return j.run(ctx, JobDaily, func(users.Record) (string, error) {
		return Greeting, nil
	})
}

// RenderStats computes the statistics message for a stored record. Regions no
// longer in the catalog use its default expectancy.
func RenderStats(rec users.Record, catalog *lifespan.Catalog, now time.Time) (string, error) {
	dob, ok := lifespan.ParseDate(rec.DateOfBirth)
	if !ok {
		return "", fmt.Errorf("notify: stored date of birth %q is invalid", rec.DateOfBirth)
	}
	return StatsMessage(lifespan.Compute(dob, catalog.Expectancy(rec.Region), now)), nil
}

func (j *Jobs) run(ctx context.Context, job string, render func(users.Record) (string, error)) (Summary, error) {
	start := time.Now()
	ctx = logger.WithJob(ctx, job)
	sum := Summary{Job: job}

	records, err := j.users.ScanAll(ctx)
	if err != nil {
		sum.Duration = time.Since(start)
		j.metrics.observeRun(sum, "fail")
		logger.LogEvent(ctx, logger.SCHED, slog.LevelError, "job.scan_failed",
			slog.String("status", logger.Status(err)),
			slog.String("err", err.Error()),
		)
		return sum, fmt.Errorf("notify: %s: scan users: %w", job, err)
	}
	sum.Users = len(records)

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(j.workers)
	for _, rec := range records {
		g.Go(func() error {
			if j.deliver(ctx, job, rec, render) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Sent = int(sent.Load())
	sum.Failed = int(failed.Load())
	sum.Duration = time.Since(start)

	status := "ok"
	if sum.Failed > 0 {
		status = "partial"
	}
	j.metrics.observeRun(sum, status)
	logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "job.finished",
		slog.String("status", status),
		slog.Int("users", sum.Users),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", logger.RoundMS(sum.Duration)),
	)
	return sum, nil
}

// deliver renders and sends one message, isolating any failure to this user.
func (j *Jobs) deliver(ctx context.Context, job string, rec users.Record, render func(users.Record) (string, error)) bool {
	ctx = logger.WithUserID(ctx, rec.UserID)

	text, err := render(rec)
	if err != nil {
		j.metrics.observeDelivery(job, "invalid_record")
		logger.LogEvent(ctx, logger.SCHED, slog.LevelWarn, "job.render_failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	err = sender.Bounded(sendCtx, j.timeout, func() error {
		return j.sender.Send(sendCtx, rec.UserID, text)
	})
	if err != nil {
		kind := sender.ClassifyError(err)
		j.metrics.observeDelivery(job, kind)
		logger.LogEvent(ctx, logger.SCHED, slog.LevelWarn, "job.delivery_failed",
			slog.String("status", logger.Status(err)),
			slog.String("err", sender.SanitizeError(err)),
			slog.String("err_kind", kind),
		)
		return false
	}
	j.metrics.observeDelivery(job, "sent")
	return true
}
