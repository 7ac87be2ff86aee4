package routing

import "telecom-inbound/internal/classify"

// CallPlan is the provider-agnostic output of EvaluateCall.
//
// It only carries what the gateway adapter (the TwiML builder) needs to
// execute the decision.
type CallPlan struct {
	Action CallAction `json:"action"`
	Kind   RouteKind  `json:"kind,omitempty"`
	Target string     `json:"target,omitempty"`

	// ScreeningRequired is always true for dial; the callee must press 1.
	ScreeningRequired bool `json:"screening_required"`

	RuleID string `json:"rule_id,omitempty"`

	// Reason is for logs and audit only.
	Reason string `json:"reason,omitempty"`
}

type CallAction string

const (
	CallReject    CallAction = "reject"
	CallVoicemail CallAction = "voicemail"
	CallDial      CallAction = "dial"
)

type RouteKind string

const (
	RouteTransfer RouteKind = "transfer"
	RouteForward  RouteKind = "forward"
)

// MessageInput is the classified message handed to EvaluateMessage.
type MessageInput struct {
	AccountID      string
	Category       classify.Category
	Priority       classify.Priority
	PersonalNumber string
}

// MessagePlan is the output of EvaluateMessage.
type MessagePlan struct {
	Blocked bool   `json:"blocked"`
	Notify  bool   `json:"notify"`
	Forward string `json:"forward_to,omitempty"`

	// LoopSuppressed is set when the forward target was the sender itself.
	LoopSuppressed bool `json:"loop_suppressed,omitempty"`

	// AutoReply and Bypass are the automations that matched, if any.
	AutoReply *Rule `json:"auto_reply,omitempty"`
	Bypass    *Rule `json:"bypass,omitempty"`

	RuleID string `json:"rule_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}
