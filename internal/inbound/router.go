package inbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"telecom-inbound/internal/audit"
	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/dialogue"
	"telecom-inbound/internal/idempotency"
	"telecom-inbound/internal/routing"
	"telecom-inbound/internal/trust"
	"telecom-inbound/pkg/logger"
)

var (
	ErrUnresolvedAccount = errors.New("inbound: no account owns the destination address")
	ErrInvalidArgument   = errors.New("inbound: invalid argument")
)

const (
	historyLimit = 10

	// Two calls from the same number inside this window break through as
	// an emergency.
	repeatCallWindow = 5 * time.Minute
	repeatCallCount  = 2

	defaultAutoReplyTTL = 60 * time.Minute
)

type Deps struct {
	Accounts      Accounts
	Events        Events
	Conversations Conversations

	Trust      *trust.Resolver
	Classifier *classify.Classifier
	Rules      *routing.Engine
	Calls      *calls.Service
	Dialogue   *dialogue.Machine
	Claims     idempotency.Claimer
	Audit      *audit.Service

	// DefaultAccountID receives events for unowned addresses. Empty drops them.
	DefaultAccountID string
}

// Router is the per-delivery pipeline: account, dedup, trust, classify,
// rules, persist, dialogue.
type Router struct {
	d     Deps
	clock func() time.Time
}

func NewRouter(d Deps) *Router {
	return &Router{d: d, clock: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (r *Router) WithClock(fn func() time.Time) *Router {
	r.clock = fn
	return r
}

func (r *Router) resolveAccount(ctx context.Context, to, externalID string) (Account, error) {
	acct, ok, err := r.d.Accounts.FindByAddress(ctx, trust.NormalizeAddress(to))
	if err != nil {
		return Account{}, err
	}
	if ok {
		return acct, nil
	}
	if r.d.DefaultAccountID == "" {
		return Account{}, fmt.Errorf("%w: %s", ErrUnresolvedAccount, to)
	}

	acct, ok, err = r.d.Accounts.Get(ctx, r.d.DefaultAccountID)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, fmt.Errorf("%w: default account %s missing", ErrUnresolvedAccount, r.d.DefaultAccountID)
	}
	logger.ForEvent(ctx, acct.ID, externalID).Warn("unresolved account, using default", "to", to)
	r.d.Audit.Note(ctx, audit.Event{
		AccountID:  acct.ID,
		Type:       audit.EventUnresolvedAccount,
		ExternalID: externalID,
		Message:    "no account owns " + to,
	})
	return acct, nil
}

// claim takes the fast-path dedup claim. A claimer failure is not fatal:
// the conditional insert still guards the event.
func (r *Router) claim(ctx context.Context, accountID, externalID string) (idempotency.Ticket, bool) {
	if r.d.Claims == nil {
		return idempotency.Ticket{}, true
	}
	t, ok, err := r.d.Claims.Claim(ctx, accountID, externalID)
	if err != nil {
		logger.ForEvent(ctx, accountID, externalID).Warn("dedup claim unavailable, relying on event store", "err", err)
		return idempotency.Ticket{}, true
	}
	return t, ok
}

func (r *Router) release(ctx context.Context, t idempotency.Ticket) {
	if r.d.Claims == nil || t.Key == "" {
		return
	}
	if err := r.d.Claims.Release(ctx, t); err != nil {
		logger.From(ctx).Warn("dedup claim release failed", "err", err)
	}
}

// RouteMessage decides what happens to one inbound message.
func (r *Router) RouteMessage(ctx context.Context, ev MessageEvent) (dec MessageDecision, err error) {
	if ev.ExternalID == "" || ev.From == "" || ev.To == "" {
		return MessageDecision{}, ErrInvalidArgument
	}
	acct, err := r.resolveAccount(ctx, ev.To, ev.ExternalID)
	if err != nil {
		return MessageDecision{}, err
	}
	log := logger.ForEvent(ctx, acct.ID, ev.ExternalID)

	ticket, ok := r.claim(ctx, acct.ID, ev.ExternalID)
	if !ok {
		log.Info("duplicate message delivery")
		return MessageDecision{AccountID: acct.ID, Duplicate: true}, nil
	}
	defer func() {
		if err != nil {
			r.release(ctx, ticket)
		}
	}()

	now := r.clock().UTC()
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = now
	}
	sender, err := r.d.Trust.Resolve(ctx, acct.ID, ev.From)
	if err != nil {
		return MessageDecision{}, err
	}

	event := Event{
		ID:          uuid.NewString(),
		AccountID:   acct.ID,
		Direction:   DirectionInbound,
		Channel:     ChannelSMS,
		From:        sender.Address,
		To:          trust.NormalizeAddress(ev.To),
		ExternalID:  ev.ExternalID,
		Body:        ev.Body,
		Attachments: ev.Attachments,
		ReceivedAt:  ev.ReceivedAt,
	}

	blocked, ruleID, reason, err := r.d.Rules.Blocked(ctx, acct.ID, sender, routing.ChannelMessage, now)
	if err != nil {
		return MessageDecision{}, err
	}
	if blocked {
		event.Status, event.Held = StatusBlocked, true
		inserted, err := r.d.Events.InsertEvent(ctx, event)
		if err != nil {
			return MessageDecision{}, err
		}
		if !inserted {
			return MessageDecision{AccountID: acct.ID, Duplicate: true, Status: StatusBlocked, Hold: true}, nil
		}
		r.d.Audit.Note(ctx, audit.Event{AccountID: acct.ID, Type: audit.EventBlockedSender, Counterpart: sender.Address, ExternalID: ev.ExternalID, RuleID: ruleID, Message: reason})
		return MessageDecision{AccountID: acct.ID, Hold: true, Status: StatusBlocked}, nil
	}

	outbound, err := r.d.Events.CountOutbound(ctx, acct.ID, sender.Address)
	if err != nil {
		return MessageDecision{}, err
	}
	var history []classify.HistoryEntry
	if outbound > 0 {
		if history, err = r.d.Events.RecentHistory(ctx, acct.ID, sender.Address, historyLimit); err != nil {
			return MessageDecision{}, err
		}
	}
	res := r.d.Classifier.Classify(ctx, classify.Input{
		AccountID:     acct.ID,
		Text:          ev.Body,
		Sender:        sender,
		OutboundCount: outbound,
		History:       history,
	})

	plan, err := r.d.Rules.EvaluateMessage(ctx, sender, routing.MessageInput{
		AccountID:      acct.ID,
		Category:       res.Category,
		Priority:       res.Priority,
		PersonalNumber: acct.PersonalNumber,
	}, now)
	if err != nil {
		return MessageDecision{}, err
	}

	event.Category, event.Priority, event.Held, event.SpamProbability = res.Category, res.Priority, res.IsHeld, res.SpamProbability
	switch res.Category {
	case classify.CategorySpam:
		event.Status = StatusSpam
	case classify.CategoryHeld:
		event.Status = StatusHeld
	default:
		event.Status = StatusDelivered
	}

	inserted, err := r.d.Events.InsertEvent(ctx, event)
	if err != nil {
		return MessageDecision{}, err
	}
	dec = MessageDecision{
		AccountID: acct.ID,
		Deliver:   res.Category == classify.CategoryInbox,
		Hold:      res.IsHeld,
		Notify:    plan.Notify && res.ShouldNotify,
		Priority:  res.Priority,
		Category:  res.Category,
		Status:    event.Status,
	}
	if !inserted {
		log.Info("duplicate message delivery (event store)")
		dec.Duplicate, dec.Notify = true, false
		return dec, nil
	}
	if dec.Notify {
		dec.ForwardTo = plan.Forward
	}

	// The event is stored; from here on failures are logged, never returned,
	// because a gateway retry would be deduplicated and lose them anyway.
	if err := r.d.Conversations.UpsertSummary(ctx, ConversationSummary{
		AccountID:   acct.ID,
		Counterpart: sender.Address,
		LastMessage: ev.Body,
		LastAt:      ev.ReceivedAt,
		Unread:      1,
		Held:        res.IsHeld,
		Priority:    res.Priority,
	}); err != nil {
		log.Error("conversation summary upsert failed", "err", err)
	}

	if res.Category != classify.CategorySpam {
		r.updateDialogue(ctx, acct.ID, sender, ev, plan, &dec)
	}
	return dec, nil
}

func (r *Router) updateDialogue(ctx context.Context, accountID string, sender trust.Sender, ev MessageEvent, plan routing.MessagePlan, dec *MessageDecision) {
	if r.d.Dialogue == nil {
		return
	}
	log := logger.From(ctx)

	if r.d.Classifier.Policy().IsEmergency(ev.Body) {
		if _, err := r.d.Dialogue.Emergency(ctx, accountID, sender.Address, "emergency_message"); err != nil {
			log.Error("emergency override failed", "err", err)
			return
		}
		dec.Emergency = true
		return
	}

	switch {
	case plan.Bypass != nil:
		_, _, err := r.d.Dialogue.Trigger(ctx, dialogue.TriggerRequest{
			AccountID:   accountID,
			Counterpart: sender.Address,
			Kind:        dialogue.KindTempBypass,
			Priority:    plan.Bypass.Priority,
			TTL:         ruleTTL(*plan.Bypass),
			Payload:     dialogue.BypassPayload{},
			RuleID:      plan.Bypass.ID,
		})
		if err != nil {
			log.Error("bypass trigger failed", "rule_id", plan.Bypass.ID, "err", err)
		}
	case plan.AutoReply != nil:
		st, res, err := r.d.Dialogue.Trigger(ctx, dialogue.TriggerRequest{
			AccountID:   accountID,
			Counterpart: sender.Address,
			Kind:        dialogue.KindActiveDeflection,
			Priority:    plan.AutoReply.Priority,
			TTL:         ruleTTL(*plan.AutoReply),
			Payload:     dialogue.DeflectionPayload{ReplyText: plan.AutoReply.Actions.ReplyText},
			RuleID:      plan.AutoReply.ID,
		})
		if err != nil {
			log.Error("auto-reply trigger failed", "rule_id", plan.AutoReply.ID, "err", err)
			break
		}
		if res != dialogue.TransitionKept && st.Kind == dialogue.KindActiveDeflection {
			dec.AutoReply = plan.AutoReply.Actions.ReplyText
		}
	}

	_, err := r.d.Dialogue.RecordExchange(ctx, accountID, sender.Address, dialogue.Exchange{
		Direction: string(DirectionInbound),
		Body:      ev.Body,
		At:        ev.ReceivedAt,
	})
	if err != nil && !errors.Is(err, dialogue.ErrNoActiveState) {
		log.Warn("record exchange failed", "err", err)
	}
}

func ruleTTL(r routing.Rule) time.Duration {
	if r.Actions.TTLMinutes > 0 {
		return time.Duration(r.Actions.TTLMinutes) * time.Minute
	}
	return defaultAutoReplyTTL
}

// RouteCall decides what happens to one inbound call.
func (r *Router) RouteCall(ctx context.Context, ev CallEvent) (dec CallDecision, err error) {
	if ev.ExternalCallID == "" || ev.From == "" || ev.To == "" {
		return CallDecision{}, ErrInvalidArgument
	}
	acct, err := r.resolveAccount(ctx, ev.To, ev.ExternalCallID)
	if err != nil {
		return CallDecision{}, err
	}
	log := logger.ForEvent(ctx, acct.ID, ev.ExternalCallID)

	ticket, ok := r.claim(ctx, acct.ID, ev.ExternalCallID)
	if !ok {
		// The original delivery may still be in flight; answer from the
		// record when it exists so the gateway gets the same instruction.
		if rec, err := r.d.Calls.Get(ctx, ev.ExternalCallID); err == nil {
			return decisionFromRecord(rec), nil
		}
		return CallDecision{AccountID: acct.ID, Action: routing.CallVoicemail, Duplicate: true, Reason: "duplicate_in_flight"}, nil
	}
	defer func() {
		if err != nil {
			r.release(ctx, ticket)
		}
	}()

	now := r.clock().UTC()
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = now
	}
	sender, err := r.d.Trust.Resolve(ctx, acct.ID, ev.From)
	if err != nil {
		return CallDecision{}, err
	}

	plan, err := r.d.Rules.EvaluateCall(ctx, acct.ID, sender, acct.PersonalNumber, now)
	if err != nil {
		return CallDecision{}, err
	}

	recent, err := r.d.Events.CountCallsSince(ctx, acct.ID, sender.Address, now.Add(-repeatCallWindow))
	if err != nil {
		return CallDecision{}, err
	}
	emergency := plan.Action != routing.CallReject && recent+1 >= repeatCallCount

	if plan.Action == routing.CallDial && !emergency && r.d.Dialogue != nil {
		st, ok, err := r.d.Dialogue.GetActiveState(ctx, acct.ID, sender.Address)
		if err != nil {
			log.Warn("dialogue lookup failed", "err", err)
		} else if ok && st.Kind == dialogue.KindDoNotDisturb {
			plan = routing.CallPlan{Action: routing.CallVoicemail, Reason: "do_not_disturb"}
		}
	}

	status := calls.StatusRinging
	if plan.Action == routing.CallReject {
		status = calls.StatusBlocked
	}
	rec, inserted, err := r.d.Calls.Start(ctx, calls.Record{
		AccountID:      acct.ID,
		ExternalCallID: ev.ExternalCallID,
		From:           sender.Address,
		To:             trust.NormalizeAddress(ev.To),
		Status:         status,
		Route:          routeOf(plan),
		Target:         plan.Target,
		RuleID:         plan.RuleID,
	})
	if err != nil {
		return CallDecision{}, err
	}
	if !inserted {
		log.Info("duplicate call delivery (call store)")
		return decisionFromRecord(rec), nil
	}

	evStatus := StatusRouted
	if plan.Action == routing.CallReject {
		evStatus = StatusBlocked
	}
	if _, err := r.d.Events.InsertEvent(ctx, Event{
		ID:         uuid.NewString(),
		AccountID:  acct.ID,
		Direction:  DirectionInbound,
		Channel:    ChannelVoice,
		From:       sender.Address,
		To:         trust.NormalizeAddress(ev.To),
		ExternalID: ev.ExternalCallID,
		ReceivedAt: ev.ReceivedAt,
		Status:     evStatus,
		Held:       plan.Action == routing.CallReject,
	}); err != nil {
		log.Error("call event insert failed", "err", err)
	}

	dec = CallDecision{
		AccountID:         acct.ID,
		Action:            plan.Action,
		Target:            plan.Target,
		Kind:              plan.Kind,
		ScreeningRequired: plan.Action == routing.CallDial,
		Reason:            plan.Reason,
	}

	if plan.Action == routing.CallReject {
		r.d.Audit.Note(ctx, audit.Event{AccountID: acct.ID, Type: audit.EventBlockedSender, Counterpart: sender.Address, ExternalID: ev.ExternalCallID, RuleID: plan.RuleID, Message: plan.Reason})
		return dec, nil
	}

	if err := r.d.Conversations.UpsertSummary(ctx, ConversationSummary{
		AccountID:   acct.ID,
		Counterpart: sender.Address,
		LastMessage: "incoming call",
		LastAt:      ev.ReceivedAt,
		Priority:    classify.PriorityMedium,
	}); err != nil {
		log.Error("conversation summary upsert failed", "err", err)
	}

	if emergency && r.d.Dialogue != nil {
		if _, err := r.d.Dialogue.Emergency(ctx, acct.ID, sender.Address, "repeated_calls"); err != nil {
			log.Error("emergency override failed", "err", err)
		} else {
			dec.Emergency = true
		}
	}
	return dec, nil
}

// RecordOutbound stores a message the account sent, which is what makes a
// counterpart an established correspondent.
func (r *Router) RecordOutbound(ctx context.Context, accountID, to, externalID, body string) (bool, error) {
	if accountID == "" || to == "" || externalID == "" {
		return false, ErrInvalidArgument
	}
	acct, ok, err := r.d.Accounts.Get(ctx, accountID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnresolvedAccount, accountID)
	}
	from := ""
	if len(acct.Addresses) > 0 {
		from = trust.NormalizeAddress(acct.Addresses[0])
	}
	return r.d.Events.InsertEvent(ctx, Event{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Direction:  DirectionOutbound,
		Channel:    ChannelSMS,
		From:       from,
		To:         trust.NormalizeAddress(to),
		ExternalID: externalID,
		Body:       body,
		ReceivedAt: r.clock().UTC(),
		Status:     StatusDelivered,
	})
}
