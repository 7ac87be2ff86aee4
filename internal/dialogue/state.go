package dialogue

import "time"

// MaxContextEntries bounds the exchange log kept on a state.
const MaxContextEntries = 20

// Exchange is one turn recorded by the dialogue collaborator.
type Exchange struct {
	Direction string    `json:"direction"`
	Body      string    `json:"body"`
	At        time.Time `json:"at"`
}

// State is one conversation state row. At most one State per
// (AccountID, Counterpart) is Active at any time.
type State struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Counterpart string `json:"counterpart"`

	Kind         Kind       `json:"state"`
	Active       bool       `json:"active"`
	RulePriority int        `json:"rule_priority"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RuleID       string     `json:"rule_id,omitempty"`

	Context []Exchange `json:"context_memory,omitempty"`
	Payload Payload    `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the TTL has elapsed at now.
func (s State) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

func appendBounded(log []Exchange, e Exchange) []Exchange {
	out := append(append([]Exchange(nil), log...), e)
	if len(out) > MaxContextEntries {
		out = out[len(out)-MaxContextEntries:]
	}
	return out
}
