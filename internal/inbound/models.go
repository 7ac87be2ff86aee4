// Package inbound is the decision entry point for gateway deliveries: one
// call per webhook, idempotent on (account, external id).
package inbound

import (
	"time"

	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/routing"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type EventStatus string

const (
	StatusDelivered EventStatus = "delivered"
	StatusHeld      EventStatus = "held"
	StatusSpam      EventStatus = "spam"
	StatusBlocked   EventStatus = "blocked"
	StatusRouted    EventStatus = "routed"
)

// Account owns one or more gateway addresses.
type Account struct {
	ID             string   `json:"id"`
	Addresses      []string `json:"addresses"`
	PersonalNumber string   `json:"personal_number,omitempty"`
}

type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Event is the immutable record of one delivery. Only the derived fields
// (Status, Category, Priority, Held) are filled in by routing.
type Event struct {
	ID          string       `json:"id"`
	AccountID   string       `json:"account_id"`
	Direction   Direction    `json:"direction"`
	Channel     Channel      `json:"channel"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	ExternalID  string       `json:"external_id"`
	Body        string       `json:"body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`

	Status          EventStatus       `json:"status"`
	Category        classify.Category `json:"category,omitempty"`
	Priority        classify.Priority `json:"priority,omitempty"`
	Held            bool              `json:"held"`
	SpamProbability int               `json:"spam_probability"`
}

// ConversationSummary is the per-counterpart denormalized row. Held is
// sticky: stores OR it with the stored value and never clear it here.
type ConversationSummary struct {
	AccountID   string
	Counterpart string
	LastMessage string
	LastAt      time.Time
	Unread      int
	Held        bool
	Priority    classify.Priority
}

// MessageEvent is an inbound SMS/MMS as delivered by the gateway.
type MessageEvent struct {
	From        string
	To          string
	ExternalID  string
	Body        string
	Attachments []Attachment
	ReceivedAt  time.Time
}

// CallEvent is an inbound voice call as delivered by the gateway.
type CallEvent struct {
	From           string
	To             string
	ExternalCallID string
	ReceivedAt     time.Time
}

type MessageDecision struct {
	AccountID string            `json:"account_id"`
	Deliver   bool              `json:"deliver"`
	Hold      bool              `json:"hold"`
	Notify    bool              `json:"notify"`
	ForwardTo string            `json:"forward_to,omitempty"`
	Priority  classify.Priority `json:"priority"`
	Category  classify.Category `json:"category,omitempty"`
	Status    EventStatus       `json:"status"`
	Duplicate bool              `json:"duplicate"`

	// AutoReply is set when this message engaged an auto-reply rule.
	AutoReply string `json:"auto_reply,omitempty"`
	Emergency bool   `json:"emergency,omitempty"`
}

type CallDecision struct {
	AccountID         string             `json:"account_id"`
	Action            routing.CallAction `json:"action"`
	Target            string             `json:"target,omitempty"`
	Kind              routing.RouteKind  `json:"kind,omitempty"`
	ScreeningRequired bool               `json:"screening_required"`
	Duplicate         bool               `json:"duplicate"`
	Reason            string             `json:"reason,omitempty"`
	Emergency         bool               `json:"emergency,omitempty"`
}

func routeOf(p routing.CallPlan) calls.Route {
	switch p.Action {
	case routing.CallReject:
		return calls.RouteReject
	case routing.CallVoicemail:
		return calls.RouteVoicemail
	}
	if p.Kind == routing.RouteTransfer {
		return calls.RouteTransfer
	}
	return calls.RouteForward
}

// decisionFromRecord rebuilds the decision for a redelivered call so the
// gateway gets the same instruction twice.
func decisionFromRecord(r calls.Record) CallDecision {
	d := CallDecision{AccountID: r.AccountID, Duplicate: true, Target: r.Target, Reason: "duplicate"}
	switch r.Route {
	case calls.RouteReject:
		d.Action = routing.CallReject
	case calls.RouteTransfer:
		d.Action, d.Kind, d.ScreeningRequired = routing.CallDial, routing.RouteTransfer, true
	case calls.RouteForward:
		d.Action, d.Kind, d.ScreeningRequired = routing.CallDial, routing.RouteForward, true
	default:
		d.Action = routing.CallVoicemail
	}
	return d
}
