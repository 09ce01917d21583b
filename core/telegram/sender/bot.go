package sender

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Messenger is the subset of *tele.Bot used for proactive messages.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// BotSender delivers plain-text messages to a chat outside of an update,
// giving up on each call after Timeout.
type BotSender struct {
	bot     Messenger
	timeout time.Duration
}

// NewBotSender wraps a bot. A non-positive timeout falls back to 10 seconds.
func NewBotSender(bot Messenger, timeout time.Duration) *BotSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BotSender{bot: bot, timeout: timeout}
}

// Send delivers text to the private chat of userID.
func (s *BotSender) Send(ctx context.Context, userID int64, text string) error {
	return Bounded(ctx, s.timeout, func() error {
		_, err := s.bot.Send(tele.ChatID(userID), text)
		return err
	})
}
