package classify

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Category is the inbox placement of a message.
type Category string

const (
	CategoryInbox Category = "INBOX"
	CategorySpam  Category = "SPAM"
	CategoryHeld  Category = "HELD"
)

// TrustTier is the sender trust level reported on every result.
type TrustTier string

const (
	TrustHigh   TrustTier = "high"
	TrustMedium TrustTier = "medium"
	TrustLow    TrustTier = "low"
)

// Priority is used for notification filtering only.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// RiskLevel is the oracle's content risk judgment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Mode scopes the question the oracle is asked.
type Mode string

const (
	// ModeEstablished asks only whether the user revoked consent and the
	// sender keeps pushing promotional content.
	ModeEstablished Mode = "established"
	// ModeFirstContact asks for unambiguous scam/marketing detection.
	ModeFirstContact Mode = "first_contact"
)

const maxReasoningRunes = 280

var (
	ErrClassificationTimeout = errors.New("classify: oracle timed out")
	ErrMalformedResponse     = errors.New("classify: malformed oracle response")
)

// SenderMeta is what the oracle may know about a sender.
type SenderMeta struct {
	Address       string    `json:"address"`
	Trust         TrustTier `json:"trust"`
	OutboundCount int       `json:"outbound_count"`
	Tags          []string  `json:"tags,omitempty"`
}

// HistoryEntry is one prior exchange with the sender, oldest first.
type HistoryEntry struct {
	Direction string    `json:"direction"`
	Body      string    `json:"body"`
	At        time.Time `json:"at"`
}

type OracleRequest struct {
	Text    string         `json:"text"`
	Sender  SenderMeta     `json:"sender"`
	History []HistoryEntry `json:"history,omitempty"`
	Mode    Mode           `json:"mode"`
}

// Verdict is the fixed oracle result schema. Only ValidateVerdict output
// reaches the rest of the engine.
type Verdict struct {
	SenderTrust      TrustTier `json:"sender_trust"`
	Intent           string    `json:"intent"`
	BehaviorPattern  string    `json:"behavior_pattern"`
	ContentRiskLevel RiskLevel `json:"content_risk_level"`
	SpamProbability  int       `json:"spam_probability"`
	IsSpam           bool      `json:"is_spam"`
	Priority         Priority  `json:"priority,omitempty"`
	Reasoning        string    `json:"reasoning"`
}

// ValidateVerdict enforces the schema. Unknown enum values for optional
// fields are cleared, out-of-range required fields are rejected.
func ValidateVerdict(v Verdict) (Verdict, error) {
	if v.SpamProbability < 0 || v.SpamProbability > 100 {
		return Verdict{}, fmt.Errorf("%w: spam_probability %d out of range", ErrMalformedResponse, v.SpamProbability)
	}
	v.SenderTrust = TrustTier(strings.ToLower(strings.TrimSpace(string(v.SenderTrust))))
	switch v.SenderTrust {
	case TrustHigh, TrustMedium, TrustLow:
	case "":
		v.SenderTrust = TrustLow
	default:
		return Verdict{}, fmt.Errorf("%w: sender_trust %q", ErrMalformedResponse, v.SenderTrust)
	}
	v.ContentRiskLevel = RiskLevel(strings.ToLower(strings.TrimSpace(string(v.ContentRiskLevel))))
	switch v.ContentRiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	case "":
		v.ContentRiskLevel = RiskMedium
	default:
		return Verdict{}, fmt.Errorf("%w: content_risk_level %q", ErrMalformedResponse, v.ContentRiskLevel)
	}
	v.Priority = Priority(strings.ToLower(strings.TrimSpace(string(v.Priority))))
	if !v.Priority.Valid() {
		v.Priority = ""
	}
	v.Intent = strings.TrimSpace(v.Intent)
	v.BehaviorPattern = strings.TrimSpace(v.BehaviorPattern)
	v.Reasoning = truncateRunes(strings.TrimSpace(v.Reasoning), maxReasoningRunes)
	return v, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
