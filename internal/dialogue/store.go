package dialogue

import (
	"context"
	"time"
)

// Store persists conversation states.
type Store interface {
	// FindActive returns every active state for the counterpart, newest first.
	FindActive(ctx context.Context, accountID, counterpart string) ([]State, error)
	// Latest returns the most recent state, active or not.
	Latest(ctx context.Context, accountID, counterpart string) (State, bool, error)
	// Replace deactivates every active state for next's counterpart and then
	// inserts next, as one atomic step.
	Replace(ctx context.Context, next State) error
	Deactivate(ctx context.Context, id string) error
	UpdateContext(ctx context.Context, id string, log []Exchange) error
	// DeactivateExpired ends every active state whose TTL elapsed by now.
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}
