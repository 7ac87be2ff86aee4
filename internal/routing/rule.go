package routing

import (
	"errors"
	"strings"
	"time"

	"telecom-inbound/internal/trust"
)

type RuleType string

const (
	RuleTransfer  RuleType = "transfer"
	RuleForward   RuleType = "forward"
	RuleBlock     RuleType = "block"
	RulePriority  RuleType = "priority"
	RuleAutoReply RuleType = "auto-reply"
	RuleNotify    RuleType = "notify"
	RuleCustom    RuleType = "custom"
)

type ScheduleKind string

const (
	ScheduleAlways   ScheduleKind = "always"
	ScheduleDuration ScheduleKind = "duration"
	ScheduleCustom   ScheduleKind = "custom"
)

// ErrScheduleExpired marks a rule whose window does not cover now.
// The engine skips such rules; it is never returned to callers.
var ErrScheduleExpired = errors.New("routing: rule schedule expired")

// Schedule is a rule's activity window.
type Schedule struct {
	Kind          ScheduleKind `json:"kind"`
	Start         time.Time    `json:"start,omitempty"`
	DurationHours float64      `json:"duration_hours,omitempty"`
	End           time.Time    `json:"end,omitempty"`
}

// Check returns ErrScheduleExpired when the window does not cover now.
func (s Schedule) Check(now time.Time) error {
	switch s.Kind {
	case "", ScheduleAlways:
		return nil
	case ScheduleDuration:
		if s.Start.IsZero() || s.DurationHours <= 0 {
			return ErrScheduleExpired
		}
		end := s.Start.Add(time.Duration(s.DurationHours * float64(time.Hour)))
		if now.Before(s.Start) || !now.Before(end) {
			return ErrScheduleExpired
		}
		return nil
	case ScheduleCustom:
		if s.Start.IsZero() || s.End.IsZero() {
			return ErrScheduleExpired
		}
		if now.Before(s.Start) || !now.Before(s.End) {
			return ErrScheduleExpired
		}
		return nil
	default:
		return ErrScheduleExpired
	}
}

func (s Schedule) ActiveAt(now time.Time) bool { return s.Check(now) == nil }

type ConditionMode string

const (
	MatchAll       ConditionMode = "all"
	MatchFavorites ConditionMode = "favorites"
	MatchSaved     ConditionMode = "saved"
	MatchTags      ConditionMode = "tags"
)

type Channel string

const (
	ChannelCall    Channel = "call"
	ChannelMessage Channel = "message"
	ChannelBoth    Channel = "both"
)

// Conditions select which senders a rule applies to.
type Conditions struct {
	Mode    ConditionMode `json:"mode"`
	Tags    []string      `json:"tags,omitempty"`
	Channel Channel       `json:"channel,omitempty"`
}

// Matches evaluates the conditions for a sender on a channel.
// A tags rule with no tags matches nobody.
func (c Conditions) Matches(s trust.Sender, ch Channel) bool {
	switch c.Channel {
	case "", ChannelBoth:
	default:
		if c.Channel != ch {
			return false
		}
	}

	switch c.Mode {
	case MatchAll:
		return true
	case MatchFavorites:
		return s.IsFavorite
	case MatchSaved:
		return s.IsSavedContact
	case MatchTags:
		return s.HasAnyTag(c.Tags)
	default:
		return false
	}
}

type NotifyFilter string

const (
	NotifyAll       NotifyFilter = "all"
	NotifyImportant NotifyFilter = "important"
	NotifyUrgent    NotifyFilter = "urgent"
)

// Actions carries the type-specific payload of a rule.
type Actions struct {
	// ForwardTo overrides the account's personal number for forward rules.
	ForwardTo string `json:"forward_to,omitempty"`

	NotifyFilter     NotifyFilter `json:"notify_filter,omitempty"`
	AlwaysNotifyTags []string     `json:"always_notify_tags,omitempty"`

	ReplyText  string `json:"reply_text,omitempty"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
}

type TransferDetails struct {
	Target string `json:"target,omitempty"`
	Label  string `json:"label,omitempty"`
}

// Rule is read-only to the engine.
type Rule struct {
	ID        string   `json:"id"`
	AccountID string   `json:"account_id"`
	Type      RuleType `json:"type"`
	Active    bool     `json:"active"`

	// Priority ranks automations for dialogue preemption.
	Priority int `json:"priority"`

	Schedule   Schedule        `json:"schedule"`
	Conditions Conditions      `json:"conditions"`
	Actions    Actions         `json:"actions"`
	Transfer   TransferDetails `json:"transfer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func normalizeFilter(f NotifyFilter) NotifyFilter {
	switch NotifyFilter(strings.ToLower(string(f))) {
	case NotifyImportant:
		return NotifyImportant
	case NotifyUrgent:
		return NotifyUrgent
	default:
		return NotifyAll
	}
}
