package reporting

import (
	"context"
	"errors"
	"time"

	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/inbound"
)

// EventSource and CallSource are satisfied by the in-memory stores of the
// inbound and calls packages.
type EventSource interface {
	Events() []inbound.Event
}

type CallSource interface {
	All() []calls.Record
}

// MemoryRepo reads straight from in-memory stores. It enforces account
// isolation on reads.
type MemoryRepo struct {
	events EventSource
	calls  CallSource
}

func NewMemoryRepo(events EventSource, callSrc CallSource) *MemoryRepo {
	return &MemoryRepo{events: events, calls: callSrc}
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (r *MemoryRepo) ListMessages(ctx context.Context, accountID string, from, to time.Time) ([]MessageRow, error) {
	if accountID == "" {
		return nil, errors.New("account_id required")
	}
	out := make([]MessageRow, 0)
	if r.events == nil {
		return out, nil
	}
	for _, e := range r.events.Events() {
		if e.AccountID != accountID || e.Direction != inbound.DirectionInbound || e.Channel != inbound.ChannelSMS {
			continue
		}
		if !inRange(e.ReceivedAt, from, to) {
			continue
		}
		out = append(out, MessageRow{
			Status:      e.Status,
			Category:    e.Category,
			Priority:    e.Priority,
			Attachments: len(e.Attachments),
			ReceivedAt:  e.ReceivedAt,
		})
	}
	return out, nil
}

func (r *MemoryRepo) ListCalls(ctx context.Context, accountID string, from, to time.Time) ([]CallRow, error) {
	if accountID == "" {
		return nil, errors.New("account_id required")
	}
	out := make([]CallRow, 0)
	if r.calls == nil {
		return out, nil
	}
	for _, c := range r.calls.All() {
		if c.AccountID != accountID || !inRange(c.CreatedAt, from, to) {
			continue
		}
		out = append(out, CallRow{
			Status:           c.Status,
			Route:            c.Route,
			ScreeningOutcome: c.ScreeningOutcome,
			DurationSeconds:  c.DurationSeconds,
			HasVoicemail:     c.VoicemailURL != "",
			CreatedAt:        c.CreatedAt,
		})
	}
	return out, nil
}
