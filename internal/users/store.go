package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store implements Repository on PostgreSQL or SQLite through sqlx.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Repository = (*Store)(nil)

// NewStore wraps an open connection. The schema is expected to be migrated.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const upsertQuery = `
	INSERT INTO users (user_id, date_of_birth, region, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		date_of_birth = excluded.date_of_birth,
		region = excluded.region,
		updated_at = excluded.updated_at`

// Upsert creates or replaces the user's record in a single statement.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.UserID == 0 {
		return fmt.Errorf("upsert user: empty user id")
	}
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertQuery),
		rec.UserID, rec.DateOfBirth, rec.Region, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", rec.UserID, err)
	}
	return nil
}

// Get retrieves a user by Telegram id.
func (s *Store) Get(ctx context.Context, userID int64) (*Record, error) {
	var rec Record
	query := s.db.Rebind(`
		SELECT user_id, date_of_birth, region, created_at, updated_at
		FROM users WHERE user_id = ?`)
	err := s.db.GetContext(ctx, &rec, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &rec, nil
}

// ScanAll reads the whole registry in one query.
func (s *Store) ScanAll(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := s.db.SelectContext(ctx, &recs, `
		SELECT user_id, date_of_birth, region, created_at, updated_at
		FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return recs, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
