package onboarding

import (
	"context"

	tghelpers "github.com/m3rciful/lifeweeks/core/telegram/helpers"
	"github.com/m3rciful/lifeweeks/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const keyboardColumns = 2

// Handler binds the machine to Telegram updates. It satisfies router.FSM.
type Handler struct {
	machine *Machine
}

// NewHandler wraps m.
func NewHandler(m *Machine) *Handler {
	return &Handler{machine: m}
}

// Start handles /start.
func (h *Handler) Start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, userID := tghelpers.ChatAndUser(c)
	reply, err := h.machine.Restart(ctx, userID)
	if sendErr := send(c, reply); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

// InProgress reports whether the user's free text belongs to the dialogue.
func (h *Handler) InProgress(ctx context.Context, userID int64) bool {
	return h.machine.InProgress(ctx, userID)
}

// HandleText feeds a text message to the dialogue.
func (h *Handler) HandleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, userID := tghelpers.ChatAndUser(c)
	reply, handled, err := h.machine.Handle(ctx, userID, c.Text())
	if !handled {
		return err
	}
	if sendErr := send(c, reply); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

func send(c tele.Context, r Reply) error {
	if r.Text == "" {
		return nil
	}
	switch {
	case len(r.Keyboard) > 0:
		return tghelpers.SendWithMarkup(c, r.Text, keyboard.ReplyButtons(keyboard.Chunk(r.Keyboard, keyboardColumns)...))
	case r.RemoveKeyboard:
		return tghelpers.SendWithMarkup(c, r.Text, keyboard.RemoveKeyboard())
	default:
		return tghelpers.SendText(c, r.Text)
	}
}
