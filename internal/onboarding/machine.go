package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/lifeweeks/core/logger"
	"github.com/m3rciful/lifeweeks/core/telegram/state"
	"github.com/m3rciful/lifeweeks/internal/lifespan"
	"github.com/m3rciful/lifeweeks/internal/users"
)

// Registrar persists completed registrations.
type Registrar interface {
	Upsert(ctx context.Context, rec users.Record) error
}

// Options wires the machine's collaborators.
type Options struct {
	Sessions state.Store[Session]
	Catalog  *lifespan.Catalog
	Users    Registrar
	Metrics  *Metrics
	// Locks serializes events per user; a fresh KeyedMutex is used when nil.
	Locks *state.KeyedMutex
}

// Machine drives the registration dialogue. All events of one user are
// handled one at a time; different users proceed in parallel.
type Machine struct {
	sessions state.Store[Session]
	catalog  *lifespan.Catalog
	users    Registrar
	metrics  *Metrics
	locks    *state.KeyedMutex
}

// NewMachine validates opts and builds a Machine.
func NewMachine(opts Options) (*Machine, error) {
	if opts.Sessions == nil || opts.Catalog == nil || opts.Users == nil {
		return nil, errors.New("onboarding: sessions, catalog and users are required")
	}
	locks := opts.Locks
	if locks == nil {
		locks = state.NewKeyedMutex()
	}
	return &Machine{
		sessions: opts.Sessions,
		catalog:  opts.Catalog,
		users:    opts.Users,
		metrics:  opts.Metrics,
		locks:    locks,
	}, nil
}

// Restart moves the user to awaiting_dob from any state and returns the welcome prompt.
func (m *Machine) Restart(ctx context.Context, userID int64) (Reply, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	prev, err := m.load(ctx, userID)
	if err != nil {
		return m.failure(ctx, "session.load", err)
	}
	if err := m.sessions.Put(ctx, userID, awaitingDOB()); err != nil {
		return m.failure(ctx, "session.put", err)
	}
	m.metrics.incStarted()
	logTransition(ctx, prev.State, StateAwaitingDOB, "start")
	return Reply{Text: textStart, RemoveKeyboard: prev.State == StateAwaitingRegion}, nil
}

// Handle feeds one free-text message to the dialogue. The bool reports whether
// the dialogue consumed the message; it is false for idle users.
func (m *Machine) Handle(ctx context.Context, userID int64, text string) (Reply, bool, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	sess, err := m.load(ctx, userID)
	if err != nil {
		r, err := m.failure(ctx, "session.load", err)
		return r, true, err
	}

	if sess.State == StateIdle {
		return Reply{}, false, nil
	}
	if !sess.Valid() {
		r, err := m.reset(ctx, userID, sess)
		return r, true, err
	}

	switch sess.State {
	case StateAwaitingDOB:
		r, err := m.handleDOB(ctx, userID, text)
		return r, true, err
	default:
		r, err := m.handleRegion(ctx, userID, sess, text)
		return r, true, err
	}
}

// reset restarts the dialogue for a stored session that is unusable, such as an
// unknown state or a pending date that does not parse.
func (m *Machine) reset(ctx context.Context, userID int64, sess Session) (Reply, error) {
	logger.LogEvent(ctx, logger.ONB, slog.LevelWarn, "onboarding.session_invalid",
		slog.String("state", string(sess.State)),
	)
	if err := m.sessions.Put(ctx, userID, awaitingDOB()); err != nil {
		return m.failure(ctx, "session.put", err)
	}
	logTransition(ctx, sess.State, StateAwaitingDOB, "invalid_session")
	return Reply{Text: textStart, RemoveKeyboard: true}, nil
}

func (m *Machine) handleDOB(ctx context.Context, userID int64, text string) (Reply, error) {
	dob, ok := lifespan.ParseDate(strings.TrimSpace(text))
	if !ok {
		m.metrics.incRejected("date")
		logger.LogEvent(ctx, logger.ONB, slog.LevelInfo, "onboarding.rejected",
			slog.String("outcome", "rejected"),
			slog.String("state", string(StateAwaitingDOB)),
			slog.String("reason", "date"),
		)
		return Reply{Text: textInvalidDate}, nil
	}

	next := awaitingRegion(lifespan.FormatDate(dob))
	if err := m.sessions.Put(ctx, userID, next); err != nil {
		return m.failure(ctx, "session.put", err)
	}
	logTransition(ctx, StateAwaitingDOB, StateAwaitingRegion, "date")
	regions := m.catalog.Regions()
	return Reply{Text: textAskRegion(regions), Keyboard: regions}, nil
}

func (m *Machine) handleRegion(ctx context.Context, userID int64, sess Session, text string) (Reply, error) {
	region, ok := m.catalog.Resolve(text)
	if !ok {
		m.metrics.incRejected("region")
		logger.LogEvent(ctx, logger.ONB, slog.LevelInfo, "onboarding.rejected",
			slog.String("outcome", "rejected"),
			slog.String("state", string(StateAwaitingRegion)),
			slog.String("reason", "region"),
		)
		regions := m.catalog.Regions()
		return Reply{Text: textUnknownRegion(regions), Keyboard: regions}, nil
	}

	rec := users.Record{UserID: userID, DateOfBirth: sess.PendingDOB, Region: region.Name}
	if err := m.users.Upsert(ctx, rec); err != nil {
		return m.failure(ctx, "users.upsert", err)
	}

	if err := m.sessions.Delete(ctx, userID); err != nil {
		// The registration is stored; a stale session only re-asks for the region.
		logger.LogEvent(ctx, logger.ONB, slog.LevelWarn, "onboarding.session_clear_failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	m.metrics.incCompleted()
	logTransition(ctx, StateAwaitingRegion, StateIdle, "registered",
		slog.String("region", region.Name),
	)
	return Reply{Text: textConfirmed(sess.PendingDOB, region), RemoveKeyboard: true}, nil
}

// InProgress reports whether the user is inside the dialogue. A session store
// failure counts as in progress so Handle can report it to the user.
func (m *Machine) InProgress(ctx context.Context, userID int64) bool {
	sess, err := m.load(ctx, userID)
	if err != nil {
		return true
	}
	return sess.State != StateIdle
}

// Current returns the user's session; idle when none is stored.
func (m *Machine) Current(ctx context.Context, userID int64) (Session, error) {
	return m.load(ctx, userID)
}

func (m *Machine) load(ctx context.Context, userID int64) (Session, error) {
	sess, ok, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("onboarding: load session: %w", err)
	}
	if !ok || sess.State == "" {
		return idleSession(), nil
	}
	return sess, nil
}

func (m *Machine) failure(ctx context.Context, op string, err error) (Reply, error) {
	m.metrics.incPersistenceFailure()
	logger.LogEvent(ctx, logger.ONB, slog.LevelError, "onboarding.failure",
		slog.String("status", logger.Status(err)),
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
	return Reply{Text: textFailure}, fmt.Errorf("onboarding: %s: %w", op, err)
}

func logTransition(ctx context.Context, from, to State, reason string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("outcome", "ok"),
		slog.String("state", string(from)),
		slog.String("next_state", string(to)),
		slog.String("reason", reason),
	}, extra...)
	logger.LogEvent(ctx, logger.ONB, slog.LevelInfo, "onboarding.transition", attrs...)
}
