package routing

import (
	"context"
	"time"

	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/trust"
	"telecom-inbound/pkg/logger"
)

// Blocked reports whether the sender is blocked on ch, either by the
// contact flag or by an active block rule.
func (e *Engine) Blocked(ctx context.Context, accountID string, s trust.Sender, ch Channel, now time.Time) (bool, string, string, error) {
	if s.IsBlocked {
		return true, "", "blocked_contact", nil
	}
	blocks, err := e.candidates(ctx, accountID, RuleBlock, s, ch, now)
	if err != nil {
		return false, "", "", err
	}
	if len(blocks) > 0 {
		return true, blocks[0].ID, "block_rule", nil
	}
	return false, "", "", nil
}

// EvaluateCall decides where an inbound call goes.
//
// Order:
//  1. Blocked sender or block rule: reject
//  2. Transfer rules: first match dials its target, forward rules are never read
//  3. Forward rules: first match dials the rule target or personal number
//  4. Nothing matched: voicemail
//
// A target equal to the caller is skipped (self-forward loop).
func (e *Engine) EvaluateCall(ctx context.Context, accountID string, s trust.Sender, personalNumber string, now time.Time) (CallPlan, error) {
	if accountID == "" {
		return CallPlan{}, ErrInvalidArgument
	}
	if blocked, ruleID, reason, err := e.Blocked(ctx, accountID, s, ChannelCall, now); err != nil || blocked {
		if err != nil {
			return CallPlan{}, err
		}
		return CallPlan{Action: CallReject, RuleID: ruleID, Reason: reason}, nil
	}

	log := logger.From(ctx)

	transfers, err := e.candidates(ctx, accountID, RuleTransfer, s, ChannelCall, now)
	if err != nil {
		return CallPlan{}, err
	}
	for _, r := range transfers {
		target := trust.NormalizeAddress(r.Transfer.Target)
		if target == "" {
			continue
		}
		if trust.SameAddress(target, s.Address) {
			log.Warn("transfer target equals caller, skipping rule", "rule_id", r.ID)
			continue
		}
		return CallPlan{Action: CallDial, Kind: RouteTransfer, Target: target, ScreeningRequired: true, RuleID: r.ID, Reason: "transfer_rule"}, nil
	}

	forwards, err := e.candidates(ctx, accountID, RuleForward, s, ChannelCall, now)
	if err != nil {
		return CallPlan{}, err
	}
	for _, r := range forwards {
		target := forwardTarget(r, personalNumber)
		if target == "" {
			continue
		}
		if trust.SameAddress(target, s.Address) {
			log.Warn("forward target equals caller, skipping rule", "rule_id", r.ID)
			continue
		}
		return CallPlan{Action: CallDial, Kind: RouteForward, Target: target, ScreeningRequired: true, RuleID: r.ID, Reason: "forward_rule"}, nil
	}

	return CallPlan{Action: CallVoicemail, Reason: "no_matching_rule"}, nil
}

// EvaluateMessage decides whether a classified message is forwarded and
// which automations it triggers. SPAM is never notified, whatever the rules
// say; only INBOX messages can trigger automations.
func (e *Engine) EvaluateMessage(ctx context.Context, s trust.Sender, in MessageInput, now time.Time) (MessagePlan, error) {
	if in.AccountID == "" {
		return MessagePlan{}, ErrInvalidArgument
	}
	if blocked, ruleID, reason, err := e.Blocked(ctx, in.AccountID, s, ChannelMessage, now); err != nil || blocked {
		if err != nil {
			return MessagePlan{}, err
		}
		return MessagePlan{Blocked: true, RuleID: ruleID, Reason: reason}, nil
	}

	switch in.Category {
	case classify.CategorySpam:
		return MessagePlan{Reason: "spam"}, nil
	case classify.CategoryHeld:
		return MessagePlan{Reason: "held"}, nil
	}

	plan := MessagePlan{}

	notifies, err := e.candidates(ctx, in.AccountID, RuleNotify, s, ChannelMessage, now)
	if err != nil {
		return MessagePlan{}, err
	}
	plan.Notify, plan.Reason = notifyDecision(notifies, s, in.Priority)

	if plan.Notify {
		target := trust.NormalizeAddress(in.PersonalNumber)
		forwards, err := e.candidates(ctx, in.AccountID, RuleForward, s, ChannelMessage, now)
		if err != nil {
			return MessagePlan{}, err
		}
		for _, r := range forwards {
			if t := forwardTarget(r, in.PersonalNumber); t != "" {
				target = t
				plan.RuleID = r.ID
				break
			}
		}
		if target != "" && trust.SameAddress(target, s.Address) {
			logger.From(ctx).Warn("message forward target equals sender, suppressing", "account_id", in.AccountID)
			target = ""
			plan.LoopSuppressed = true
		}
		plan.Forward = target
	}

	bypass, err := e.candidates(ctx, in.AccountID, RulePriority, s, ChannelMessage, now)
	if err != nil {
		return MessagePlan{}, err
	}
	if len(bypass) > 0 {
		r := bypass[0]
		plan.Bypass = &r
	}

	replies, err := e.candidates(ctx, in.AccountID, RuleAutoReply, s, ChannelMessage, now)
	if err != nil {
		return MessagePlan{}, err
	}
	if len(replies) > 0 {
		r := replies[0]
		plan.AutoReply = &r
	}

	return plan, nil
}

// notifyDecision applies tag overrides before the first notify rule that
// sets a filter. With no filter every message notifies.
func notifyDecision(rules []Rule, s trust.Sender, p classify.Priority) (bool, string) {
	for _, r := range rules {
		if s.HasAnyTag(r.Actions.AlwaysNotifyTags) {
			return true, "tag_override"
		}
	}
	var filter NotifyFilter
	for _, r := range rules {
		if r.Actions.NotifyFilter != "" {
			filter = r.Actions.NotifyFilter
			break
		}
	}
	if filter == "" {
		return true, "default_notify_all"
	}
	switch normalizeFilter(filter) {
	case NotifyUrgent:
		return p == classify.PriorityHigh, "filter_urgent"
	case NotifyImportant:
		return p == classify.PriorityHigh || p == classify.PriorityMedium, "filter_important"
	default:
		return true, "filter_all"
	}
}

func forwardTarget(r Rule, personalNumber string) string {
	if t := trust.NormalizeAddress(r.Actions.ForwardTo); t != "" {
		return t
	}
	return trust.NormalizeAddress(personalNumber)
}
