package router

import (
	"context"
	"time"

	tg "github.com/m3rciful/lifeweeks/core/telegram"
	tghelpers "github.com/m3rciful/lifeweeks/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// FSM is a dialogue that may claim free-text messages while it is in progress.
type FSM interface {
	InProgress(ctx context.Context, userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the text handler: an active dialogue wins, then commands
// typed without a registered endpoint, then the registry fallback.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		_, userID := tghelpers.ChatAndUser(c)

		if fsm != nil && userID != 0 && fsm.InProgress(tghelpers.BuildContext(c), userID) {
			return handleWithSummary(c, "fsm", start, func() error {
				return fsm.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}
