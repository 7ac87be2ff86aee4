package calls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"telecom-inbound/internal/audit"
	"telecom-inbound/pkg/logger"
)

// Service reconciles call legs against asynchronous gateway callbacks.
// Every write is conditional on the status that was read, so out-of-order
// callbacks cannot regress a record.
type Service struct {
	store Store
	audit *audit.Service
	clock func() time.Time
}

func NewService(store Store, auditSvc *audit.Service) *Service {
	return &Service{store: store, audit: auditSvc, clock: time.Now}
}

// Start records a new leg. Redelivered webhooks get the existing record back.
func (s *Service) Start(ctx context.Context, r Record) (Record, bool, error) {
	if r.AccountID == "" || r.ExternalCallID == "" {
		return Record{}, false, ErrInvalidArgument
	}
	now := s.clock().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusRinging
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return s.store.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, externalCallID string) (Record, error) {
	return s.store.Get(ctx, externalCallID)
}

// ApplyStatus folds a status callback into the record. The bool reports
// whether the stored status changed. A lost race is retried once against a
// fresh read.
func (s *Service) ApplyStatus(ctx context.Context, externalCallID string, incoming Status, durationSeconds int) (Record, bool, error) {
	if externalCallID == "" {
		return Record{}, false, ErrInvalidArgument
	}

	for attempt := 0; attempt < 2; attempt++ {
		cur, err := s.store.Get(ctx, externalCallID)
		if err != nil {
			return Record{}, false, err
		}

		next, changed := NextStatus(cur.Status, incoming, durationSeconds)
		if !changed {
			if cur.Status.Terminal() && incoming != cur.Status {
				log := logger.ForEvent(ctx, cur.AccountID, externalCallID)
				log.Warn("stale call status ignored", "current", cur.Status, "incoming", incoming)
				s.audit.Note(ctx, audit.Event{
					AccountID:  cur.AccountID,
					Type:       audit.EventStaleStatus,
					ExternalID: externalCallID,
					Message:    string(cur.Status) + " kept over " + string(incoming),
				})
			}
			return cur, false, nil
		}

		ok, err := s.store.UpdateStatus(ctx, externalCallID, cur.Status, next, durationSeconds)
		if err != nil {
			return Record{}, false, err
		}
		if ok {
			cur.Status = next
			if durationSeconds > 0 {
				cur.DurationSeconds = durationSeconds
			}
			cur.UpdatedAt = s.clock().UTC()
			return cur, true, nil
		}
	}
	return Record{}, false, ErrStatusConflict
}

// ResolveScreening records the callee's answer on the caller's leg. On
// ACCEPTED the parent is locked as transferred or forwarded. Otherwise the
// parent becomes no-answer, stays open for voicemail, and the outcome's
// error is returned. An ACCEPTED leg never changes outcome again.
func (s *Service) ResolveScreening(ctx context.Context, parentCallID string, outcome ScreeningOutcome) (Record, error) {
	parent, err := s.store.Get(ctx, parentCallID)
	if err != nil {
		return Record{}, err
	}
	if parent.ScreeningOutcome == ScreeningAccepted {
		return parent, nil
	}
	set, err := s.store.SetScreening(ctx, parentCallID, outcome)
	if err != nil {
		return Record{}, err
	}
	if !set {
		// Accepted by a concurrent callback.
		return s.store.Get(ctx, parentCallID)
	}

	if outcome != ScreeningAccepted {
		rec, _, err := s.ApplyStatus(ctx, parentCallID, StatusNoAnswer, 0)
		if err != nil {
			return Record{}, err
		}
		rec.ScreeningOutcome = outcome
		return rec, outcome.Err()
	}

	target := StatusForwarded
	if parent.Route == RouteTransfer {
		target = StatusTransferred
	}
	rec, _, err := s.ApplyStatus(ctx, parentCallID, target, parent.DurationSeconds)
	if err != nil {
		return Record{}, err
	}
	rec.ScreeningOutcome = outcome
	return rec, nil
}

// AttachVoicemail stores the recording url for a leg that went to voicemail.
func (s *Service) AttachVoicemail(ctx context.Context, externalCallID, url string) error {
	if externalCallID == "" || url == "" {
		return ErrInvalidArgument
	}
	err := s.store.SetVoicemail(ctx, externalCallID, url)
	if errors.Is(err, ErrNotFound) {
		logger.From(ctx).Warn("voicemail for unknown call", "external_call_id", externalCallID)
	}
	return err
}
