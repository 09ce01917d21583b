package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/lifeweeks/core/config"
	"github.com/m3rciful/lifeweeks/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared middleware chain for bots.
// metrics may be nil to skip Prometheus instrumentation.
func DefaultMiddlewares(cfg *coreconfig.Config, metrics *middleware.Metrics, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if metrics != nil {
		mws = append(mws, Middleware{Name: "metrics", Use: metrics.Middleware})
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			opts := middleware.RateLimitOptions{
				Interval:  interval,
				Exclude:   ex,
				OnLimited: onLimited,
			}
			if metrics != nil {
				opts.Metrics = metrics
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use:  middleware.RateLimitMiddleware(opts),
			})
		}
	}

	mws = append(mws, Middleware{Name: "counters", Use: middleware.MessageCountersMiddleware})
	return mws
}
