package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"telecom-inbound/internal/audit"
	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/dialogue"
	"telecom-inbound/internal/idempotency"
	"telecom-inbound/internal/routing"
	"telecom-inbound/internal/trust"
)

const (
	acctNumber = "+15550000000"
	personal   = "+15554445555"
	momNumber  = "+15550001111"
	stranger   = "+15559990000"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	router   *Router
	store    *MemoryStore
	rules    *routing.MemoryStore
	calls    *calls.MemoryStore
	states   *dialogue.MemoryStore
	machine  *dialogue.Machine
	audit    *audit.MemoryRepo
	oracleN  *int
	verdicts func(req classify.OracleRequest) classify.Verdict
}

func newHarness(t *testing.T, rules ...routing.Rule) *harness {
	t.Helper()
	h := &harness{
		store:  NewMemoryStore(Account{ID: "a1", Addresses: []string{acctNumber}, PersonalNumber: personal}),
		rules:  routing.NewMemoryStore(rules...),
		calls:  calls.NewMemoryStore(),
		states: dialogue.NewMemoryStore(),
		audit:  audit.NewMemoryRepo(),
	}
	n := 0
	h.oracleN = &n
	h.verdicts = func(classify.OracleRequest) classify.Verdict { return classify.Verdict{SpamProbability: 5} }
	oracle := classify.OracleFunc(func(ctx context.Context, req classify.OracleRequest) (classify.Verdict, error) {
		*h.oracleN++
		return h.verdicts(req), nil
	})

	auditSvc := audit.NewService(h.audit)
	dir := trust.NewMemoryDirectory(trust.Contact{ID: "c1", AccountID: "a1", Address: momNumber, Name: "Mom", Favorite: true, Tags: []string{"family"}})
	h.machine = dialogue.NewMachine(h.states, auditSvc).WithClock(func() time.Time { return now })
	h.router = NewRouter(Deps{
		Accounts:      h.store,
		Events:        h.store,
		Conversations: h.store,
		Trust:         trust.NewResolver(dir),
		Classifier:    classify.NewClassifier(oracle, nil, time.Second),
		Rules:         routing.NewEngine(h.rules),
		Calls:         calls.NewService(h.calls, auditSvc),
		Dialogue:      h.machine,
		Claims:        idempotency.NewMemoryClaimer(time.Hour),
		Audit:         auditSvc,
	}).WithClock(func() time.Time { return now })
	return h
}

func msg(from, id, body string) MessageEvent {
	return MessageEvent{From: from, To: acctNumber, ExternalID: id, Body: body}
}

func TestRouteMessage_UnknownGreetingIsHeld(t *testing.T) {
	fw := routing.Rule{ID: "f1", AccountID: "a1", Type: routing.RuleForward, Active: true, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchAll}}
	h := newHarness(t, fw)
	d, err := h.router.RouteMessage(context.Background(), msg(stranger, "SM1", "hey"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Category != classify.CategoryHeld || !d.Hold || d.Deliver || d.ForwardTo != "" || d.Notify {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if *h.oracleN != 0 {
		t.Fatalf("greeting must not reach the oracle")
	}
	c, _ := h.store.Conversation("a1", stranger)
	if !c.Held {
		t.Fatalf("conversation should be held")
	}
}

func TestRouteMessage_SavedContactDelivered(t *testing.T) {
	fw := routing.Rule{ID: "f1", AccountID: "a1", Type: routing.RuleForward, Active: true, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchTags, Tags: []string{"family"}, Channel: routing.ChannelBoth}}
	h := newHarness(t, fw)
	h.verdicts = func(classify.OracleRequest) classify.Verdict {
		t.Fatalf("oracle called for saved contact")
		return classify.Verdict{}
	}
	d, err := h.router.RouteMessage(context.Background(), msg(momNumber, "SM1", "BUY NOW $$$ http://deal.example"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Category != classify.CategoryInbox || !d.Deliver || !d.Notify || d.ForwardTo != personal {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestRouteMessage_EstablishedPromoAfterStopIsSpam(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i, body := range []string{"hi", "sure", "STOP"} {
		if _, err := h.router.RecordOutbound(ctx, "a1", stranger, "OUT"+string(rune('0'+i)), body); err != nil {
			t.Fatalf("record outbound: %v", err)
		}
	}
	h.verdicts = func(req classify.OracleRequest) classify.Verdict {
		if req.Mode != classify.ModeEstablished || len(req.History) != 3 {
			t.Fatalf("unexpected oracle request: %+v", req)
		}
		return classify.Verdict{IsSpam: true, SpamProbability: 97}
	}

	d, err := h.router.RouteMessage(ctx, msg(stranger, "SM9", "Huge sale this weekend, 50% off everything"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Category != classify.CategorySpam || !d.Hold || d.Notify || d.ForwardTo != "" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestRouteMessage_SpamNeverNotifies(t *testing.T) {
	n := routing.Rule{ID: "n1", AccountID: "a1", Type: routing.RuleNotify, Active: true, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchAll},
		Actions:    routing.Actions{AlwaysNotifyTags: []string{"vip"}}}
	h := newHarness(t, n)
	ctx := context.Background()
	_, _ = h.router.RecordOutbound(ctx, "a1", stranger, "OUT1", "stop")
	h.verdicts = func(classify.OracleRequest) classify.Verdict {
		return classify.Verdict{IsSpam: true, SpamProbability: 90}
	}

	d, _ := h.router.RouteMessage(ctx, msg(stranger, "SM1", "Act now! Limited time offer on solar panels"))
	if d.Category != classify.CategorySpam || d.Notify {
		t.Fatalf("spam must never notify: %+v", d)
	}
}

func TestRouteMessage_DuplicateIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.router.RouteMessage(ctx, msg(momNumber, "SM1", "see you at 6pm"))
	if err != nil || first.Duplicate {
		t.Fatalf("first delivery: %+v err=%v", first, err)
	}
	second, err := h.router.RouteMessage(ctx, msg(momNumber, "SM1", "see you at 6pm"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !second.Duplicate || second.ForwardTo != "" || second.Notify {
		t.Fatalf("redelivery must have no side effects: %+v", second)
	}
	if got := len(h.store.Events()); got != 1 {
		t.Fatalf("events = %d, want 1", got)
	}
	c, _ := h.store.Conversation("a1", momNumber)
	if c.Unread != 1 {
		t.Fatalf("summary updated twice: unread=%d", c.Unread)
	}
}

func TestRouteMessage_DuplicateCaughtByEventStoreWhenClaimLost(t *testing.T) {
	h := newHarness(t)
	h.router.d.Claims = nil
	ctx := context.Background()

	_, _ = h.router.RouteMessage(ctx, msg(momNumber, "SM1", "ok"))
	d, _ := h.router.RouteMessage(ctx, msg(momNumber, "SM1", "ok"))
	if !d.Duplicate || d.Notify {
		t.Fatalf("event store should catch the redelivery: %+v", d)
	}
	if len(h.store.Events()) != 1 {
		t.Fatalf("expected one event")
	}
}

func TestRouteMessage_EmergencyDestroysScheduling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, _, err := h.machine.Trigger(ctx, dialogue.TriggerRequest{
		AccountID: "a1", Counterpart: momNumber, Kind: dialogue.KindScheduling, Priority: 100,
		Payload: dialogue.SchedulingPayload{Slots: []time.Time{now.Add(time.Hour)}},
	}); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	d, err := h.router.RouteMessage(ctx, msg(momNumber, "SM1", "there was an accident, call 911"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !d.Emergency || d.Priority != classify.PriorityHigh {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if _, ok, _ := h.machine.GetActiveState(ctx, "a1", momNumber); ok {
		t.Fatalf("no state may remain active")
	}
	latest, _, _ := h.machine.Latest(ctx, "a1", momNumber)
	if latest.Kind != dialogue.KindDestroyed || latest.Active {
		t.Fatalf("expected inactive DESTROYED marker, got %+v", latest)
	}
	if _, ok := latest.Payload.(dialogue.SchedulingPayload); ok {
		t.Fatalf("scheduling payload should be discarded")
	}
}

func TestRouteMessage_SpamWithUrgentWordsKeepsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, _, err := h.machine.Trigger(ctx, dialogue.TriggerRequest{
		AccountID: "a1", Counterpart: stranger, Kind: dialogue.KindScheduling, Priority: 100,
		Payload: dialogue.SchedulingPayload{Slots: []time.Time{now.Add(time.Hour)}},
	}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	h.verdicts = func(classify.OracleRequest) classify.Verdict {
		return classify.Verdict{IsSpam: true, SpamProbability: 96}
	}

	d, err := h.router.RouteMessage(ctx, msg(stranger, "SM1", "EMERGENCY: your car warranty expires, call now to claim"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Category != classify.CategorySpam || d.Emergency || d.Notify {
		t.Fatalf("unexpected decision: %+v", d)
	}
	st, ok, _ := h.machine.GetActiveState(ctx, "a1", stranger)
	if !ok || st.Kind != dialogue.KindScheduling {
		t.Fatalf("spam must not touch dialogue state, got ok=%v %+v", ok, st)
	}
	if len(h.audit.OfType("a1", audit.EventEmergency)) != 0 {
		t.Fatalf("spam must not raise an emergency")
	}
}

func TestRouteMessage_AutoReplyEngagesOnce(t *testing.T) {
	ar := routing.Rule{ID: "ar1", AccountID: "a1", Type: routing.RuleAutoReply, Active: true, Priority: 2, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchSaved},
		Actions:    routing.Actions{ReplyText: "Driving, will reply later", TTLMinutes: 30}}
	h := newHarness(t, ar)
	ctx := context.Background()

	d1, _ := h.router.RouteMessage(ctx, msg(momNumber, "SM1", "where are you"))
	if d1.AutoReply != "Driving, will reply later" {
		t.Fatalf("expected auto reply, got %+v", d1)
	}
	d2, _ := h.router.RouteMessage(ctx, msg(momNumber, "SM2", "hello??"))
	if d2.AutoReply != "" {
		t.Fatalf("auto reply should fire once per window, got %+v", d2)
	}

	st, ok, _ := h.machine.GetActiveState(ctx, "a1", momNumber)
	if !ok || st.Kind != dialogue.KindActiveDeflection || len(st.Context) != 2 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.ExpiresAt == nil || !st.ExpiresAt.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("ttl not applied: %v", st.ExpiresAt)
	}
}

func TestRouteMessage_BlockedSenderShortCircuits(t *testing.T) {
	b := routing.Rule{ID: "b1", AccountID: "a1", Type: routing.RuleBlock, Active: true, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchAll}}
	h := newHarness(t, b)

	d, err := h.router.RouteMessage(context.Background(), msg(stranger, "SM1", "Claim your prize now at http://x"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Status != StatusBlocked || d.Deliver || d.ForwardTo != "" || *h.oracleN != 0 {
		t.Fatalf("unexpected decision: %+v oracle=%d", d, *h.oracleN)
	}
	evs := h.store.Events()
	if len(evs) != 1 || evs[0].Status != StatusBlocked || evs[0].Category != "" {
		t.Fatalf("blocked event should be recorded unclassified: %+v", evs)
	}
	if len(h.audit.OfType("a1", audit.EventBlockedSender)) != 1 {
		t.Fatalf("expected blocked_sender audit")
	}
}

func TestRouteMessage_UnresolvedAccount(t *testing.T) {
	h := newHarness(t)
	_, err := h.router.RouteMessage(context.Background(), MessageEvent{From: stranger, To: "+19999999999", ExternalID: "SM1", Body: "hey"})
	if !errors.Is(err, ErrUnresolvedAccount) {
		t.Fatalf("expected ErrUnresolvedAccount, got %v", err)
	}

	h.router.d.DefaultAccountID = "a1"
	d, err := h.router.RouteMessage(context.Background(), MessageEvent{From: stranger, To: "+19999999999", ExternalID: "SM2", Body: "hey"})
	if err != nil || d.AccountID != "a1" {
		t.Fatalf("expected default account fallback: %+v err=%v", d, err)
	}
	if len(h.audit.OfType("a1", audit.EventUnresolvedAccount)) != 1 {
		t.Fatalf("expected unresolved_account audit")
	}
}

func TestRouteCall_TransferBeatsForward(t *testing.T) {
	tr := routing.Rule{ID: "t1", AccountID: "a1", Type: routing.RuleTransfer, Active: true, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchTags, Tags: []string{"family"}},
		Transfer:   routing.TransferDetails{Target: "+15552223333"}}
	fw := routing.Rule{ID: "f1", AccountID: "a1", Type: routing.RuleForward, Active: true, CreatedAt: now.Add(-time.Hour),
		Conditions: routing.Conditions{Mode: routing.MatchAll}}
	h := newHarness(t, tr, fw)
	ctx := context.Background()

	d, err := h.router.RouteCall(ctx, CallEvent{From: momNumber, To: acctNumber, ExternalCallID: "CA1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Action != routing.CallDial || d.Kind != routing.RouteTransfer || d.Target != "+15552223333" || !d.ScreeningRequired {
		t.Fatalf("unexpected decision: %+v", d)
	}

	svc := calls.NewService(h.calls, nil)
	if _, err := svc.ResolveScreening(ctx, "CA1", calls.ScreeningAccepted); err != nil {
		t.Fatalf("resolve screening: %v", err)
	}
	_, _, _ = svc.ApplyStatus(ctx, "CA1", calls.StatusCompleted, 80)
	rec, _ := svc.Get(ctx, "CA1")
	if rec.Status != calls.StatusTransferred {
		t.Fatalf("status = %s, want transferred", rec.Status)
	}

	again, err := h.router.RouteCall(ctx, CallEvent{From: momNumber, To: acctNumber, ExternalCallID: "CA1"})
	if err != nil || !again.Duplicate || again.Target != "+15552223333" || again.Kind != routing.RouteTransfer {
		t.Fatalf("redelivery should replay the decision: %+v err=%v", again, err)
	}
}

func TestRouteCall_BlockedRejected(t *testing.T) {
	h := newHarness(t, routing.Rule{ID: "b1", AccountID: "a1", Type: routing.RuleBlock, Active: true, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchAll, Channel: routing.ChannelCall}})

	d, err := h.router.RouteCall(context.Background(), CallEvent{From: stranger, To: acctNumber, ExternalCallID: "CA1"})
	if err != nil || d.Action != routing.CallReject {
		t.Fatalf("unexpected: %+v err=%v", d, err)
	}
	rec, _ := h.calls.Get(context.Background(), "CA1")
	if rec.Status != calls.StatusBlocked {
		t.Fatalf("expected blocked record, got %s", rec.Status)
	}
}

func TestRouteCall_DoNotDisturbAndRepeatCaller(t *testing.T) {
	fw := routing.Rule{ID: "f1", AccountID: "a1", Type: routing.RuleForward, Active: true, CreatedAt: now,
		Conditions: routing.Conditions{Mode: routing.MatchAll}}
	h := newHarness(t, fw)
	ctx := context.Background()
	_, _, _ = h.machine.Trigger(ctx, dialogue.TriggerRequest{AccountID: "a1", Counterpart: momNumber, Kind: dialogue.KindDoNotDisturb, Priority: 1})

	first, _ := h.router.RouteCall(ctx, CallEvent{From: momNumber, To: acctNumber, ExternalCallID: "CA1"})
	if first.Action != routing.CallVoicemail || first.Reason != "do_not_disturb" {
		t.Fatalf("DND should send to voicemail: %+v", first)
	}

	second, _ := h.router.RouteCall(ctx, CallEvent{From: momNumber, To: acctNumber, ExternalCallID: "CA2"})
	if !second.Emergency || second.Action != routing.CallDial || second.Target != personal {
		t.Fatalf("repeat caller should break through: %+v", second)
	}
	if _, ok, _ := h.machine.GetActiveState(ctx, "a1", momNumber); ok {
		t.Fatalf("emergency should clear DND")
	}
}

func TestRouteCall_NoRulesGoesToVoicemail(t *testing.T) {
	h := newHarness(t)
	d, err := h.router.RouteCall(context.Background(), CallEvent{From: stranger, To: acctNumber, ExternalCallID: "CA1"})
	if err != nil || d.Action != routing.CallVoicemail || d.ScreeningRequired {
		t.Fatalf("unexpected: %+v err=%v", d, err)
	}
}

type flakyEvents struct {
	*MemoryStore
	fail bool
}

func (f *flakyEvents) InsertEvent(ctx context.Context, e Event) (bool, error) {
	if f.fail {
		return false, errors.New("db down")
	}
	return f.MemoryStore.InsertEvent(ctx, e)
}

func TestRouteMessage_ClaimReleasedOnFailure(t *testing.T) {
	h := newHarness(t)
	flaky := &flakyEvents{MemoryStore: h.store, fail: true}
	h.router.d.Events = flaky
	ctx := context.Background()

	if _, err := h.router.RouteMessage(ctx, msg(momNumber, "SM1", "running late")); err == nil {
		t.Fatalf("expected insert failure")
	}
	flaky.fail = false
	d, err := h.router.RouteMessage(ctx, msg(momNumber, "SM1", "running late"))
	if err != nil || d.Duplicate || !d.Deliver {
		t.Fatalf("retry should be processed: %+v err=%v", d, err)
	}
}
