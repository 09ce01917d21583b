package onboarding

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type sentMessage struct {
	text   string
	markup *tele.ReplyMarkup
}

type fakeContext struct {
	tele.Context
	upd   tele.Update
	mu    sync.Mutex
	store map[string]interface{}
	sent  []sentMessage
}

func newContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 1, Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		}},
		store: make(map[string]interface{}),
	}
}

func (f *fakeContext) Update() tele.Update { return f.upd }
func (f *fakeContext) Text() string        { return f.upd.Message.Text }
func (f *fakeContext) Sender() *tele.User  { return f.upd.Message.Sender }
func (f *fakeContext) Chat() *tele.Chat    { return f.upd.Message.Chat }

func (f *fakeContext) Get(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}

func (f *fakeContext) Set(key string, v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = v
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	msg := sentMessage{text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			msg.markup = so.ReplyMarkup
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestHandlerDialogue(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.machine)

	start := newContext(21, "/start")
	require.NoError(t, h.Start(start))
	require.Len(t, start.sent, 1)
	assert.Nil(t, start.sent[0].markup)

	assert.True(t, h.InProgress(t.Context(), 21))

	dob := newContext(21, "1999-12-31")
	require.NoError(t, h.HandleText(dob))
	require.Len(t, dob.sent, 1)
	require.NotNil(t, dob.sent[0].markup)
	assert.Len(t, dob.sent[0].markup.ReplyKeyboard, 3, "five regions in rows of two")

	region := newContext(21, "германия")
	require.NoError(t, h.HandleText(region))
	require.Len(t, region.sent, 1)
	require.NotNil(t, region.sent[0].markup)
	assert.True(t, region.sent[0].markup.RemoveKeyboard)
	assert.Contains(t, region.sent[0].text, "регион: Германия")

	idle := newContext(21, "hello")
	require.NoError(t, h.HandleText(idle))
	assert.Empty(t, idle.sent)
}
