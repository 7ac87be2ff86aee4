package audit

import "time"

// Event is an immutable, append-only audit record of a routing anomaly or
// operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - account_id is required.
// - Audit writes are best-effort; routing never blocks on them.
type Event struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Type      EventType `json:"type" db:"type"`

	// Actor is the service token subject for API-driven events.
	Actor string `json:"actor,omitempty" db:"actor"`

	Counterpart string `json:"counterpart,omitempty" db:"counterpart"`
	ExternalID  string `json:"external_id,omitempty" db:"external_id"`
	RuleID      string `json:"rule_id,omitempty" db:"rule_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventUnresolvedAccount EventType = "unresolved_account"
	EventBlockedSender     EventType = "blocked_sender"
	EventEmergency         EventType = "emergency_override"
	EventStatePreempted    EventType = "state_preempted"
	EventStaleStatus       EventType = "stale_status"
	EventOperatorAction    EventType = "operator_action"
)
