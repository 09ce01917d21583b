package state

import "context"

// Store keeps one session value per user.
type Store[S any] interface {
	// Get returns the stored session and whether one exists.
	Get(ctx context.Context, userID int64) (S, bool, error)
	// Put replaces the user's session.
	Put(ctx context.Context, userID int64, session S) error
	// Delete removes the user's session; deleting a missing session is not an error.
	Delete(ctx context.Context, userID int64) error
}
