package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/lifeweeks/core/config"
	tg "github.com/m3rciful/lifeweeks/core/telegram"
	"github.com/m3rciful/lifeweeks/core/telegram/state"
	"github.com/m3rciful/lifeweeks/internal/config"
	"github.com/m3rciful/lifeweeks/internal/onboarding"
	"github.com/m3rciful/lifeweeks/internal/users"

	tele "gopkg.in/telebot.v4"
)

const adminID = 42

type memoryUsers struct {
	mu      sync.Mutex
	records map[int64]users.Record
	getErr  error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{records: make(map[int64]users.Record)}
}

func (m *memoryUsers) Upsert(_ context.Context, rec users.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec
	return nil
}

func (m *memoryUsers) Get(_ context.Context, userID int64) (*users.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memoryUsers) ScanAll(context.Context) ([]users.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryUsers) Ping(context.Context) error { return nil }

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (r *recordingSender) Send(_ context.Context, userID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[int64][]string)
	}
	r.sent[userID] = append(r.sent[userID], text)
	return nil
}

type fakeContext struct {
	tele.Context
	upd   tele.Update
	store map[string]interface{}
	sent  []string
}

func newContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 7, Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		}},
		store: make(map[string]interface{}),
	}
}

func (f *fakeContext) Update() tele.Update           { return f.upd }
func (f *fakeContext) Text() string                  { return f.upd.Message.Text }
func (f *fakeContext) Sender() *tele.User            { return f.upd.Message.Sender }
func (f *fakeContext) Chat() *tele.Chat              { return f.upd.Message.Chat }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }
func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what.(string))
	return nil
}

func (f *fakeContext) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fixture struct {
	app    *App
	users  *memoryUsers
	sender *recordingSender
	routes map[any]tele.HandlerFunc
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := &config.Config{
		Config:   coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "123:abc", AdminID: adminID}},
		Schedule: config.ScheduleConfig{Timezone: "UTC"},
	}
	require.NoError(t, config.Normalize(cfg))

	repo := newMemoryUsers()
	snd := &recordingSender{}
	a, err := New(cfg, Deps{
		Users:    repo,
		Sessions: state.NewMemoryStore[onboarding.Session](),
		Sender:   snd,
		Now:      func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	routes := make(map[any]tele.HandlerFunc)
	for _, r := range a.routes(tg.Runtime{}) {
		routes[r.Endpoint] = r.Handler
	}
	return fixture{app: a, users: repo, sender: snd, routes: routes}
}

func (f fixture) dispatch(t *testing.T, userID int64, text string) *fakeContext {
	t.Helper()
	c := newContext(userID, text)
	endpoint := any(tele.OnText)
	if h, ok := f.routes[text]; ok && h != nil {
		endpoint = text
	}
	require.NoError(t, f.routes[endpoint](c))
	return c
}

func TestRoutesCoverCommandsAndText(t *testing.T) {
	f := newFixture(t)
	for _, cmd := range []string{"/start", "/stats", "/help", "/run_weekly", "/run_daily"} {
		assert.Contains(t, f.routes, cmd)
	}
	assert.Contains(t, f.routes, tele.OnText)
}

func TestRegistrationThenStats(t *testing.T) {
	f := newFixture(t)

	c := f.dispatch(t, 5, "/stats")
	assert.Equal(t, textNotRegistered, c.last())

	f.dispatch(t, 5, "/start")
	f.dispatch(t, 5, "2000-05-15")
	f.dispatch(t, 5, "россия")

	rec, err := f.users.Get(t.Context(), 5)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, users.Record{UserID: 5, DateOfBirth: "2000-05-15", Region: "Россия"}, users.Record{UserID: rec.UserID, DateOfBirth: rec.DateOfBirth, Region: rec.Region})

	c = f.dispatch(t, 5, "/stats")
	assert.Contains(t, c.last(), "Недель прожито: 1378")

	// Idle text is not answered.
	c = f.dispatch(t, 5, "привет")
	assert.Empty(t, c.sent)
}

func TestStatsLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.users.getErr = errors.New("db down")

	c := newContext(5, "/stats")
	err := f.routes["/stats"](c)
	require.Error(t, err)
	assert.Equal(t, textStatsFailed, c.last())
}

func TestHelpHidesAdminCommands(t *testing.T) {
	f := newFixture(t)

	c := f.dispatch(t, 5, "/help")
	assert.Contains(t, c.last(), "/start - ")
	assert.NotContains(t, c.last(), "/run_weekly")

	c = f.dispatch(t, adminID, "/help")
	assert.Contains(t, c.last(), "/run_weekly - ")
	assert.Contains(t, c.last(), "/run_daily - ")
}

func TestAdminJobCommands(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Upsert(t.Context(), users.Record{UserID: 9, DateOfBirth: "1990-01-01", Region: "США"}))

	c := f.dispatch(t, 5, "/run_daily")
	assert.Equal(t, textAdminOnly, c.last())
	assert.Empty(t, f.sender.sent)

	c = f.dispatch(t, adminID, "/run_daily")
	assert.Contains(t, c.last(), "Рассылка daily: пользователей 1, отправлено 1, ошибок 0")
	assert.Len(t, f.sender.sent[9], 1)

	c = f.dispatch(t, adminID, "/run_weekly")
	assert.Contains(t, c.last(), "Рассылка weekly: пользователей 1, отправлено 1")
	require.Len(t, f.sender.sent[9], 2)
	assert.Contains(t, f.sender.sent[9][1], "Ожидаемая продолжительность жизни: 79 лет")
}

func TestRunOptionsLifecycle(t *testing.T) {
	f := newFixture(t)
	opts, err := f.app.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, f.app.registry, opts.Registry)
	assert.NotEmpty(t, opts.Middlewares)

	require.NoError(t, opts.OnStart(t.Context(), tg.Runtime{}))
	assert.False(t, f.app.cron.Next("daily").IsZero())
	require.NoError(t, opts.OnStop(t.Context(), tg.Runtime{}))
}

func TestStartWithoutBotOrSender(t *testing.T) {
	cfg := &config.Config{Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t"}}}
	require.NoError(t, config.Normalize(cfg))
	a, err := New(cfg, Deps{Users: newMemoryUsers(), Sessions: state.NewMemoryStore[onboarding.Session]()})
	require.NoError(t, err)

	c := newContext(adminID, "/run_daily")
	require.NoError(t, a.jobCommand("daily")(c))
	assert.Equal(t, textJobsNotReady, c.last())

	assert.Error(t, a.start(t.Context(), tg.Runtime{}))
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Deps{})
	assert.Error(t, err)

	cfg := &config.Config{Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t"}}}
	require.NoError(t, config.Normalize(cfg))
	_, err = New(cfg, Deps{})
	assert.Error(t, err)
}
