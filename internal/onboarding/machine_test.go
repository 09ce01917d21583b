package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/lifeweeks/core/telegram/state"
	"github.com/m3rciful/lifeweeks/internal/lifespan"
	"github.com/m3rciful/lifeweeks/internal/users"
)

type fakeRegistry struct {
	mu      sync.Mutex
	records map[int64]users.Record
	calls   int
	err     error
}

func (f *fakeRegistry) Upsert(_ context.Context, rec users.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.records == nil {
		f.records = make(map[int64]users.Record)
	}
	f.records[rec.UserID] = rec
	return nil
}

type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, int64) (Session, bool, error) { return Session{}, false, b.err }
func (b brokenStore) Put(context.Context, int64, Session) error        { return b.err }
func (b brokenStore) Delete(context.Context, int64) error              { return b.err }

type fixture struct {
	machine  *Machine
	sessions *state.MemoryStore[Session]
	registry *fakeRegistry
	metrics  *Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog, err := lifespan.NewCatalog(lifespan.DefaultRegions(), lifespan.DefaultExpectancyYears)
	require.NoError(t, err)

	f := fixture{
		sessions: state.NewMemoryStore[Session](),
		registry: &fakeRegistry{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	f.machine, err = NewMachine(Options{
		Sessions: f.sessions,
		Catalog:  catalog,
		Users:    f.registry,
		Metrics:  f.metrics,
	})
	require.NoError(t, err)
	return f
}

func (f fixture) current(t *testing.T, userID int64) Session {
	t.Helper()
	s, err := f.machine.Current(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func TestIdleUserIsNotHandled(t *testing.T) {
	f := newFixture(t)
	reply, handled, err := f.machine.Handle(context.Background(), 1, "1990-01-01")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, reply.Text)
	assert.False(t, f.machine.InProgress(context.Background(), 1))
	assert.Equal(t, StateIdle, f.current(t, 1).State)
}

func TestFullRegistration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reply, err := f.machine.Restart(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Привет! Я бот 'Календарь жизни'. Давайте начнем!\nПожалуйста, введите вашу дату рождения в формате YYYY-MM-DD.", reply.Text)
	assert.Equal(t, Session{State: StateAwaitingDOB}, f.current(t, 7))
	assert.True(t, f.machine.InProgress(ctx, 7))

	reply, handled, err := f.machine.Handle(ctx, 7, "1990-13-01")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "Неверный формат даты. Пожалуйста, введите дату в формате YYYY-MM-DD.", reply.Text)
	assert.Equal(t, StateAwaitingDOB, f.current(t, 7).State)

	reply, handled, err = f.machine.Handle(ctx, 7, " 1990-05-15 ")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "Отлично! Теперь укажите ваш регион проживания (например, Россия, США, Германия).", reply.Text)
	assert.Equal(t, []string{"Россия", "США", "Германия", "Япония", "Франция"}, reply.Keyboard)
	assert.Equal(t, Session{State: StateAwaitingRegion, PendingDOB: "1990-05-15"}, f.current(t, 7))

	reply, _, err = f.machine.Handle(ctx, 7, "Атлантида")
	require.NoError(t, err)
	assert.Equal(t, "Неизвестный регион. Пожалуйста, выберите из списка: Россия, США, Германия, Япония, Франция.", reply.Text)
	assert.Equal(t, StateAwaitingRegion, f.current(t, 7).State)
	assert.Zero(t, f.registry.calls)

	reply, handled, err = f.machine.Handle(ctx, 7, "сша")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "Спасибо! Ваша дата рождения: 1990-05-15, регион: США.\nВы будете получать уведомления каждую неделю.", reply.Text)
	assert.True(t, reply.RemoveKeyboard)
	assert.Equal(t, idleSession(), f.current(t, 7))
	assert.Equal(t, users.Record{UserID: 7, DateOfBirth: "1990-05-15", Region: "США"}, f.registry.records[7])
	assert.Zero(t, f.sessions.Len())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Started))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Completed))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rejected.WithLabelValues("date")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rejected.WithLabelValues("region")))

	_, handled, err = f.machine.Handle(ctx, 7, "Россия")
	require.NoError(t, err)
	assert.False(t, handled, "completed dialogue must not consume further text")
}

func TestRestartClearsPendingDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Restart(ctx, 3)
	require.NoError(t, err)
	_, _, err = f.machine.Handle(ctx, 3, "2000-02-29")
	require.NoError(t, err)

	reply, err := f.machine.Restart(ctx, 3)
	require.NoError(t, err)
	assert.True(t, reply.RemoveKeyboard)
	assert.Equal(t, Session{State: StateAwaitingDOB}, f.current(t, 3))
}

func TestUpsertFailureKeepsAwaitingRegion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registry.err = errors.New("disk full")

	_, err := f.machine.Restart(ctx, 5)
	require.NoError(t, err)
	_, _, err = f.machine.Handle(ctx, 5, "1985-01-31")
	require.NoError(t, err)

	reply, handled, err := f.machine.Handle(ctx, 5, "Япония")
	require.Error(t, err)
	assert.True(t, handled)
	assert.Equal(t, textFailure, reply.Text)
	assert.NotContains(t, reply.Text, "disk full")
	assert.Equal(t, Session{State: StateAwaitingRegion, PendingDOB: "1985-01-31"}, f.current(t, 5))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PersistenceFailures))

	f.registry.err = nil
	reply, _, err = f.machine.Handle(ctx, 5, "Япония")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "регион: Япония")
}

func TestSessionStoreFailure(t *testing.T) {
	catalog, err := lifespan.NewCatalog(lifespan.DefaultRegions(), 0)
	require.NoError(t, err)
	m, err := NewMachine(Options{
		Sessions: brokenStore{err: errors.New("redis down")},
		Catalog:  catalog,
		Users:    &fakeRegistry{},
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, m.InProgress(ctx, 1))

	reply, handled, err := m.Handle(ctx, 1, "1990-01-01")
	assert.Error(t, err)
	assert.True(t, handled)
	assert.Equal(t, textFailure, reply.Text)

	reply, err = m.Restart(ctx, 1)
	assert.Error(t, err)
	assert.Equal(t, textFailure, reply.Text)
}

func TestInvalidStoredSessionRestartsDialogue(t *testing.T) {
	cases := map[string]Session{
		"region without date":  {State: StateAwaitingRegion},
		"unparsable date":      {State: StateAwaitingRegion, PendingDOB: "garbage"},
		"impossible date":      {State: StateAwaitingRegion, PendingDOB: "2024-02-30"},
		"unknown state":        {State: "legacy"},
		"date while asked dob": {State: StateAwaitingDOB, PendingDOB: "2000-01-01"},
	}
	for name, stored := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			require.NoError(t, f.sessions.Put(ctx, 9, stored))
			require.True(t, f.machine.InProgress(ctx, 9))

			reply, handled, err := f.machine.Handle(ctx, 9, "Россия")
			require.NoError(t, err)
			assert.True(t, handled)
			assert.Equal(t, textStart, reply.Text)
			assert.True(t, reply.RemoveKeyboard)
			assert.Equal(t, awaitingDOB(), f.current(t, 9))
			assert.Zero(t, f.registry.calls)
			assert.Empty(t, f.registry.records)
		})
	}
}

// failingDelete stores sessions in memory but cannot remove them.
type failingDelete struct {
	*state.MemoryStore[Session]
}

func (failingDelete) Delete(context.Context, int64) error { return errors.New("redis: connection reset") }

func TestSessionClearFailureStillConfirms(t *testing.T) {
	ctx := context.Background()
	catalog, err := lifespan.NewCatalog(lifespan.DefaultRegions(), lifespan.DefaultExpectancyYears)
	require.NoError(t, err)
	sessions := failingDelete{state.NewMemoryStore[Session]()}
	registry := &fakeRegistry{}
	m, err := NewMachine(Options{Sessions: sessions, Catalog: catalog, Users: registry})
	require.NoError(t, err)

	_, err = m.Restart(ctx, 4)
	require.NoError(t, err)
	_, _, err = m.Handle(ctx, 4, "2000-05-15")
	require.NoError(t, err)

	reply, handled, err := m.Handle(ctx, 4, "Япония")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, textConfirmed("2000-05-15", lifespan.Region{Name: "Япония", Years: 84}), reply.Text)
	assert.True(t, reply.RemoveKeyboard)
	assert.Equal(t, users.Record{UserID: 4, DateOfBirth: "2000-05-15", Region: "Япония"}, registry.records[4])

	stale, err := m.Current(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, awaitingRegion("2000-05-15"), stale)
}

func TestSameUserEventsAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.machine.Restart(ctx, 11)
	require.NoError(t, err)
	_, _, err = f.machine.Handle(ctx, 11, "1970-01-01")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = f.machine.Handle(ctx, 11, "Франция")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.registry.calls, "only the first event may complete the registration")
	assert.Equal(t, StateIdle, f.current(t, 11).State)
}

func TestSessionValid(t *testing.T) {
	cases := []struct {
		s    Session
		want bool
	}{
		{idleSession(), true},
		{awaitingDOB(), true},
		{awaitingRegion("2000-01-01"), true},
		{Session{State: StateAwaitingRegion}, false},
		{Session{State: StateAwaitingRegion, PendingDOB: "garbage"}, false},
		{Session{State: StateAwaitingRegion, PendingDOB: "2023-02-29"}, false},
		{Session{State: StateIdle, PendingDOB: "2000-01-01"}, false},
		{Session{State: "lost"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.s.Valid(), "%+v", tc.s)
	}
}

func TestNewMachineRequiresDependencies(t *testing.T) {
	_, err := NewMachine(Options{})
	assert.Error(t, err)
}
