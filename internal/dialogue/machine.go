package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"telecom-inbound/internal/audit"
	"telecom-inbound/pkg/logger"
)

var (
	ErrNotFound          = errors.New("dialogue: state not found")
	ErrNoActiveState     = errors.New("dialogue: no active state")
	ErrInvalidTransition = errors.New("dialogue: invalid transition")
	ErrInvalidArgument   = errors.New("dialogue: invalid argument")
)

// DefaultTTL applies when a trigger does not set one.
const DefaultTTL = 60 * time.Minute

type TransitionResult string

const (
	TransitionCreated   TransitionResult = "created"
	TransitionPreempted TransitionResult = "preempted"
	// TransitionKept means the current state outranked the trigger.
	TransitionKept      TransitionResult = "kept"
	TransitionDestroyed TransitionResult = "destroyed"
)

type TriggerRequest struct {
	AccountID   string
	Counterpart string
	Kind        Kind
	Priority    int
	TTL         time.Duration
	Payload     Payload
	RuleID      string
}

// Machine runs state transitions. It holds no locks across calls; each
// transition is a read followed by one atomic Replace.
type Machine struct {
	store Store
	audit *audit.Service
	clock func() time.Time
}

func NewMachine(store Store, auditSvc *audit.Service) *Machine {
	return &Machine{store: store, audit: auditSvc, clock: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (m *Machine) WithClock(fn func() time.Time) *Machine {
	m.clock = fn
	return m
}

// GetActiveState returns the active state, expiring it lazily if its TTL
// has elapsed.
func (m *Machine) GetActiveState(ctx context.Context, accountID, counterpart string) (State, bool, error) {
	if accountID == "" || counterpart == "" {
		return State{}, false, ErrInvalidArgument
	}
	states, err := m.store.FindActive(ctx, accountID, counterpart)
	if err != nil {
		return State{}, false, err
	}

	now := m.clock().UTC()
	var (
		current State
		found   bool
	)
	for _, s := range states {
		if s.Expired(now) || found {
			// Expired, or an older duplicate left by a lost race.
			if err := m.store.Deactivate(ctx, s.ID); err != nil {
				return State{}, false, err
			}
			continue
		}
		current, found = s, true
	}
	return current, found, nil
}

// Latest returns the most recent state row, including inactive DESTROYED markers.
func (m *Machine) Latest(ctx context.Context, accountID, counterpart string) (State, bool, error) {
	return m.store.Latest(ctx, accountID, counterpart)
}

// Trigger creates a state for the counterpart. An existing active state is
// preempted only by a strictly higher priority; otherwise it is kept and
// returned unchanged.
func (m *Machine) Trigger(ctx context.Context, req TriggerRequest) (State, TransitionResult, error) {
	if req.AccountID == "" || req.Counterpart == "" {
		return State{}, "", ErrInvalidArgument
	}
	if !req.Kind.Triggerable() {
		return State{}, "", fmt.Errorf("%w: cannot trigger %s", ErrInvalidTransition, req.Kind)
	}
	if req.Payload != nil && req.Payload.Kind() != req.Kind {
		return State{}, "", fmt.Errorf("%w: %s payload for %s", ErrInvalidTransition, req.Payload.Kind(), req.Kind)
	}

	cur, hasCur, err := m.GetActiveState(ctx, req.AccountID, req.Counterpart)
	if err != nil {
		return State{}, "", err
	}
	if hasCur && req.Priority <= cur.RulePriority {
		return cur, TransitionKept, nil
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.clock().UTC()
	expires := now.Add(ttl)

	payload := req.Payload
	if payload == nil {
		if payload, err = emptyPayload(req.Kind); err != nil {
			return State{}, "", err
		}
	}
	if bp, ok := payload.(BypassPayload); ok {
		if hasCur {
			bp.OriginalKind = cur.Kind
		}
		if bp.Until.IsZero() {
			bp.Until = expires
		}
		payload = bp
	}

	next := State{
		ID:           uuid.NewString(),
		AccountID:    req.AccountID,
		Counterpart:  req.Counterpart,
		Kind:         req.Kind,
		Active:       true,
		RulePriority: req.Priority,
		ExpiresAt:    &expires,
		RuleID:       req.RuleID,
		Payload:      payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Replace(ctx, next); err != nil {
		return State{}, "", err
	}

	if !hasCur {
		return next, TransitionCreated, nil
	}
	logger.From(ctx).Info("conversation state preempted",
		"account_id", req.AccountID, "from", cur.Kind, "to", next.Kind,
		"from_priority", cur.RulePriority, "to_priority", next.RulePriority)
	m.audit.Note(ctx, audit.Event{
		AccountID:   req.AccountID,
		Type:        audit.EventStatePreempted,
		Counterpart: req.Counterpart,
		RuleID:      req.RuleID,
		Message:     fmt.Sprintf("%s (p%d) preempted by %s (p%d)", cur.Kind, cur.RulePriority, next.Kind, next.RulePriority),
	})
	return next, TransitionPreempted, nil
}

// Emergency deactivates every state for the counterpart and writes an
// inactive DESTROYED marker, whatever the current priority.
func (m *Machine) Emergency(ctx context.Context, accountID, counterpart, reason string) (State, error) {
	if accountID == "" || counterpart == "" {
		return State{}, ErrInvalidArgument
	}
	prev, hadPrev, err := m.GetActiveState(ctx, accountID, counterpart)
	if err != nil {
		return State{}, err
	}

	now := m.clock().UTC()
	marker := State{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Counterpart: counterpart,
		Kind:        KindDestroyed,
		Active:      false,
		Payload:     DestroyedPayload{Reason: reason},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if hadPrev {
		marker.RulePriority = prev.RulePriority
		marker.Payload = DestroyedPayload{Reason: reason, Previous: prev.Kind}
	}
	if err := m.store.Replace(ctx, marker); err != nil {
		return State{}, err
	}

	logger.From(ctx).Warn("emergency override", "account_id", accountID, "reason", reason)
	m.audit.Note(ctx, audit.Event{
		AccountID:   accountID,
		Type:        audit.EventEmergency,
		Counterpart: counterpart,
		Message:     reason,
	})
	return marker, nil
}

// RecordExchange appends to the active state's context memory, keeping the
// most recent MaxContextEntries.
func (m *Machine) RecordExchange(ctx context.Context, accountID, counterpart string, e Exchange) (State, error) {
	cur, ok, err := m.GetActiveState(ctx, accountID, counterpart)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, ErrNoActiveState
	}
	if e.At.IsZero() {
		e.At = m.clock().UTC()
	}
	cur.Context = appendBounded(cur.Context, e)
	if err := m.store.UpdateContext(ctx, cur.ID, cur.Context); err != nil {
		if errors.Is(err, ErrNotFound) {
			return State{}, ErrNoActiveState
		}
		return State{}, err
	}
	return cur, nil
}

// Sweep deactivates every expired active state.
func (m *Machine) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeactivateExpired(ctx, m.clock().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.From(ctx).Info("expired conversation states swept", "count", n)
	}
	return n, nil
}
