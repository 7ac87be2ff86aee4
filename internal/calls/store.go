package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
	ErrStatusConflict  = errors.New("calls: concurrent status update")
)

// Store persists call records keyed by ExternalCallID.
type Store interface {
	// Create inserts r unless a record with the same ExternalCallID exists,
	// in which case the existing record is returned with inserted=false.
	Create(ctx context.Context, r Record) (Record, bool, error)
	Get(ctx context.Context, externalCallID string) (Record, error)
	// UpdateStatus writes to only if the stored status still equals from.
	UpdateStatus(ctx context.Context, externalCallID string, from, to Status, durationSeconds int) (bool, error)
	// SetScreening records outcome unless the leg was already ACCEPTED, in
	// which case it reports false and leaves the record alone.
	SetScreening(ctx context.Context, externalCallID string, outcome ScreeningOutcome) (bool, error)
	SetVoicemail(ctx context.Context, externalCallID, url string) error
}
