package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"telecom-inbound/pkg/logger"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. There is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AccountID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Note is Append for hot paths: failures are logged, never returned.
// A nil Service is a no-op.
func (s *Service) Note(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", e.Type, "account_id", e.AccountID, "err", err)
	}
}

// LogOperatorAction records a state change made through the internal API.
func (s *Service) LogOperatorAction(ctx context.Context, accountID, actor, counterpart, message, metadata string) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        EventOperatorAction,
		Actor:       actor,
		Counterpart: counterpart,
		Message:     message,
		Metadata:    metadata,
	})
}
