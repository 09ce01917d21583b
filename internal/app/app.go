// Package app wires configuration, storage, the onboarding dialogue, the
// notification jobs and the ops endpoint into a runnable Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/lifeweeks/core/bootstrap"
	"github.com/m3rciful/lifeweeks/core/cmd"
	"github.com/m3rciful/lifeweeks/core/logger"
	tg "github.com/m3rciful/lifeweeks/core/telegram"
	"github.com/m3rciful/lifeweeks/core/telegram/middleware"
	"github.com/m3rciful/lifeweeks/core/telegram/router"
	"github.com/m3rciful/lifeweeks/core/telegram/sender"
	"github.com/m3rciful/lifeweeks/core/telegram/state"
	"github.com/m3rciful/lifeweeks/internal/config"
	"github.com/m3rciful/lifeweeks/internal/notify"
	"github.com/m3rciful/lifeweeks/internal/onboarding"
	"github.com/m3rciful/lifeweeks/internal/ops"
	"github.com/m3rciful/lifeweeks/internal/users"
)

// Deps are the infrastructure pieces New builds on. Bootstrap fills them from
// configuration; tests pass fakes.
type Deps struct {
	DB       *sqlx.DB
	Redis    *redis.Client
	Users    users.Repository
	Sessions state.Store[onboarding.Session]
	// Sender delivers job messages; nil means a bot-backed sender created on start.
	Sender  notify.Sender
	Metrics *prometheus.Registry
	Now     func() time.Time
}

// App is the assembled bot.
type App struct {
	cfg   *config.Config
	db    *sqlx.DB
	redis *redis.Client
	users users.Repository
	now   func() time.Time

	machine    *onboarding.Machine
	onboarding *onboarding.Handler
	registry   *tg.Registry

	prom          *prometheus.Registry
	tgMetrics     *middleware.Metrics
	notifyMetrics *notify.Metrics

	jobs *notify.Jobs
	cron *notify.Cron
	ops  *ops.Server
}

// Bootstrap is the cmd entry point: it initializes logging, storage and the
// session backend, then assembles the App.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: users.Migrations(),
	})
	if err != nil {
		return nil, err
	}

	deps := Deps{DB: res.DB, Users: users.NewStore(res.DB)}
	switch cfg.Session.Backend {
	case config.SessionRedis:
		client, err := connectRedis(ctx, cfg.Session.RedisURL)
		if err != nil {
			_ = res.DB.Close()
			return nil, err
		}
		deps.Redis = client
		deps.Sessions = state.NewRedisStore[onboarding.Session](client, cfg.Session.KeyPrefix, cfg.Session.TTL)
	default:
		deps.Sessions = state.NewMemoryStore[onboarding.Session]()
	}
	logger.L.Info("session store ready",
		slog.String("component", "app"),
		slog.String("event", "sessions.ready"),
		slog.String("backend", cfg.Session.Backend),
	)

	application, err := New(cfg, deps)
	if err != nil {
		_ = closeStorage(deps.DB, deps.Redis)
		return nil, err
	}
	return application, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("app: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("app: redis ping: %w", err)
	}
	return client, nil
}

// New assembles the App from cfg and deps. cfg must already be normalized.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if cfg == nil || cfg.Catalog() == nil {
		return nil, errors.New("app: normalized config is required")
	}
	if deps.Users == nil || deps.Sessions == nil {
		return nil, errors.New("app: users and sessions are required")
	}

	prom := deps.Metrics
	if prom == nil {
		prom = prometheus.NewRegistry()
		prom.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	machine, err := onboarding.NewMachine(onboarding.Options{
		Sessions: deps.Sessions,
		Catalog:  cfg.Catalog(),
		Users:    deps.Users,
		Metrics:  onboarding.NewMetrics(prom),
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:           cfg,
		db:            deps.DB,
		redis:         deps.Redis,
		users:         deps.Users,
		now:           now,
		machine:       machine,
		onboarding:    onboarding.NewHandler(machine),
		registry:      tg.NewRegistry(),
		prom:          prom,
		tgMetrics:     middleware.NewMetrics(prom),
		notifyMetrics: notify.NewMetrics(prom),
	}
	a.registerCommands()

	checks := []ops.Check{{Name: "users", Pinger: deps.Users}}
	if deps.Redis != nil {
		checks = append(checks, ops.Check{Name: "sessions", Pinger: redisPinger{deps.Redis}})
	}
	a.ops = ops.New(ops.Options{Listen: cfg.Ops.Listen, Gatherer: prom, Checks: checks})

	if deps.Sender != nil {
		if err := a.useSender(deps.Sender); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// useSender builds the jobs and their schedule on top of s.
func (a *App) useSender(s notify.Sender) error {
	jobs, err := notify.NewJobs(notify.Options{
		Users:   a.users,
		Sender:  s,
		Catalog: a.cfg.Catalog(),
		Metrics: a.notifyMetrics,
		Workers: a.cfg.Schedule.Workers,
		Timeout: a.cfg.Schedule.DispatchTimeout,
		Now:     a.now,
	})
	if err != nil {
		return err
	}
	a.jobs = jobs
	if a.cfg.Schedule.Disabled {
		return nil
	}
	c, err := notify.NewCron(jobs, notify.CronOptions{
		Weekly:   a.cfg.Schedule.Weekly,
		Daily:    a.cfg.Schedule.Daily,
		Location: a.cfg.Location(),
	})
	if err != nil {
		return err
	}
	a.cron = c
	return nil
}

// TelegramRunOptions describes the bot runtime for core/telegram.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.tgMetrics, a.onRateLimited),
		Routes:      a.routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) routes(tg.Runtime) []tg.Route {
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.onAdminReject,
	})
	return append(routes, router.TextRoutes(a.onboarding, a.registry, router.TextOptions{})...)
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	if a.jobs == nil {
		if rt.Bot == nil {
			return errors.New("app: no bot to deliver notifications")
		}
		if err := a.useSender(sender.NewBotSender(rt.Bot, a.cfg.Schedule.DispatchTimeout)); err != nil {
			return err
		}
	}
	if a.cron != nil {
		a.cron.Start()
	} else {
		logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "schedule.disabled")
	}
	return a.ops.Start()
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	var errs []error
	if a.cron != nil {
		if err := a.cron.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.ops.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("app: ops shutdown: %w", err))
	}
	if err := closeStorage(a.db, a.redis); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func closeStorage(db *sqlx.DB, rdb *redis.Client) error {
	var errs []error
	if db != nil {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close db: %w", err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

