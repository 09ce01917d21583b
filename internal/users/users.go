// Package users is the registry of onboarded users: one record per Telegram
// user, replaced wholesale on every completed onboarding and never deleted here.
package users

import (
	"context"
	"embed"
	"io/fs"
	"time"
)

//go:embed migrations
var migrations embed.FS

// Migrations exposes the schema migrations keyed by driver directory
// ("postgres", "sqlite") for core/database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Record is a registered user. DateOfBirth uses the YYYY-MM-DD layout and Region
// is a canonical catalog name at the time of writing.
type Record struct {
	UserID      int64     `db:"user_id"`
	DateOfBirth string    `db:"date_of_birth"`
	Region      string    `db:"region"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Repository persists user records.
type Repository interface {
	// Upsert creates the record or replaces date of birth and region of an existing one.
	Upsert(ctx context.Context, rec Record) error
	// Get returns nil, nil when the user is not registered.
	Get(ctx context.Context, userID int64) (*Record, error)
	// ScanAll returns every record ordered by user id.
	ScanAll(ctx context.Context) ([]Record, error)
	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error
}
