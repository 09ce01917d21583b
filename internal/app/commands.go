package app

import (
	"fmt"
	"log/slog"

	"github.com/m3rciful/lifeweeks/core/logger"
	tg "github.com/m3rciful/lifeweeks/core/telegram"
	tghelpers "github.com/m3rciful/lifeweeks/core/telegram/helpers"
	"github.com/m3rciful/lifeweeks/internal/notify"

	tele "gopkg.in/telebot.v4"
)

const (
	textNotRegistered = "Вы ещё не зарегистрированы. Отправьте /start, чтобы начать."
	textStatsFailed   = "Извините, не удалось получить статистику. Попробуйте ещё раз чуть позже."
	textRateLimited   = "Слишком много сообщений. Подождите немного."
	textAdminOnly     = "Команда доступна только администратору."
	textJobsNotReady  = "Рассылки ещё не запущены."
)

func (a *App) registerCommands() {
	a.registry.RegisterCommand("/start", tg.Command{
		Handler:     a.onboarding.Start,
		Description: "Начать регистрацию заново",
	})
	a.registry.RegisterCommand("/stats", tg.Command{
		Handler:     a.handleStats,
		Description: "Показать статистику недель",
	})
	a.registry.RegisterCommand("/help", tg.Command{
		Handler:     a.handleHelp,
		Description: "Список команд",
	})
	a.registry.RegisterCommand("/run_weekly", tg.Command{
		Handler:     a.jobCommand(notify.JobWeekly),
		Description: "Запустить еженедельную рассылку",
		AdminOnly:   true,
	})
	a.registry.RegisterCommand("/run_daily", tg.Command{
		Handler:     a.jobCommand(notify.JobDaily),
		Description: "Запустить утреннее приветствие",
		AdminOnly:   true,
	})
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, userID := tghelpers.ChatAndUser(c)

	rec, err := a.users.Get(ctx, userID)
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "stats.lookup_failed",
			slog.String("status", logger.Status(err)),
			slog.String("err", err.Error()),
		)
		_ = tghelpers.SendText(c, textStatsFailed)
		return fmt.Errorf("app: stats: %w", err)
	}
	if rec == nil {
		return tghelpers.SendText(c, textNotRegistered)
	}
	msg, err := notify.RenderStats(*rec, a.cfg.Catalog(), a.now())
	if err != nil {
		_ = tghelpers.SendText(c, textStatsFailed)
		return err
	}
	return tghelpers.SendText(c, msg)
}

func (a *App) handleHelp(c tele.Context) error {
	_, userID := tghelpers.ChatAndUser(c)
	admin := a.cfg.Telegram.AdminID != 0 && userID == a.cfg.Telegram.AdminID
	return tghelpers.SendText(c, a.registry.HelpText(admin))
}

func (a *App) jobCommand(job string) tele.HandlerFunc {
	return func(c tele.Context) error {
		if a.jobs == nil {
			return tghelpers.SendText(c, textJobsNotReady)
		}
		run := a.jobs.RunDaily
		if job == notify.JobWeekly {
			run = a.jobs.RunWeekly
		}
		sum, err := notify.Trigger(job, run)
		return tghelpers.SendText(c, jobReport(sum, err))
	}
}

func jobReport(sum notify.Summary, err error) string {
	if err != nil {
		return fmt.Sprintf("Рассылка %s не выполнена: %v", sum.Job, err)
	}
	return fmt.Sprintf("Рассылка %s: пользователей %d, отправлено %d, ошибок %d, за %s",
		sum.Job, sum.Users, sum.Sent, sum.Failed, logger.RoundMS(sum.Duration))
}

func (a *App) onRateLimited(c tele.Context) error {
	return tghelpers.SendText(c, textRateLimited)
}

func (a *App) onAdminReject(c tele.Context) error {
	return tghelpers.SendText(c, textAdminOnly)
}
