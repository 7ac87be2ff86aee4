package calls

import "time"

// Record is one call leg, keyed by the gateway's call id.
//
// A dialed leg (transfer or forward) carries ParentCallID; the caller's
// leg owns the routing outcome.
type Record struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	ExternalCallID string `json:"external_call_id" db:"external_call_id"`
	ParentCallID   string `json:"parent_call_id,omitempty" db:"parent_call_id"`

	From string `json:"from" db:"from_address"`
	To   string `json:"to" db:"to_address"`

	Status Status `json:"status" db:"status"`

	// Route is how the call was handled: transfer, forward, voicemail or reject.
	Route  Route  `json:"route,omitempty" db:"route"`
	Target string `json:"target,omitempty" db:"target"`
	RuleID string `json:"rule_id,omitempty" db:"rule_id"`

	DurationSeconds  int              `json:"duration" db:"duration"`
	ScreeningOutcome ScreeningOutcome `json:"screening_outcome,omitempty" db:"screening_outcome"`
	VoicemailURL     string           `json:"voicemail_url,omitempty" db:"voicemail_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Route string

const (
	RouteTransfer  Route = "transfer"
	RouteForward   Route = "forward"
	RouteVoicemail Route = "voicemail"
	RouteReject    Route = "reject"
)
