package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/inbound"
)

var now = time.Unix(1700000000, 0).UTC()

func window() TimeRange { return TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)} }

func seededEvents(t *testing.T) *inbound.MemoryStore {
	t.Helper()
	store := inbound.NewMemoryStore()
	evs := []inbound.Event{
		{ID: "1", AccountID: "a1", Direction: inbound.DirectionInbound, Channel: inbound.ChannelSMS, ExternalID: "SM1", ReceivedAt: now,
			Status: inbound.StatusDelivered, Category: classify.CategoryInbox, Priority: classify.PriorityHigh,
			Attachments: []inbound.Attachment{{URL: "https://m/0"}}},
		{ID: "2", AccountID: "a1", Direction: inbound.DirectionInbound, Channel: inbound.ChannelSMS, ExternalID: "SM2", ReceivedAt: now,
			Status: inbound.StatusHeld, Category: classify.CategoryHeld, Priority: classify.PriorityMedium},
		{ID: "3", AccountID: "a1", Direction: inbound.DirectionInbound, Channel: inbound.ChannelSMS, ExternalID: "SM3", ReceivedAt: now,
			Status: inbound.StatusSpam, Category: classify.CategorySpam, Priority: classify.PriorityLow},
		{ID: "4", AccountID: "a1", Direction: inbound.DirectionInbound, Channel: inbound.ChannelSMS, ExternalID: "SM4", ReceivedAt: now,
			Status: inbound.StatusBlocked},
		// outside the window, outbound, voice and foreign account rows are ignored
		{ID: "5", AccountID: "a1", Direction: inbound.DirectionInbound, Channel: inbound.ChannelSMS, ExternalID: "SM5", ReceivedAt: now.Add(-2 * time.Hour), Status: inbound.StatusSpam},
		{ID: "6", AccountID: "a1", Direction: inbound.DirectionOutbound, Channel: inbound.ChannelSMS, ExternalID: "OUT1", ReceivedAt: now},
		{ID: "7", AccountID: "a1", Direction: inbound.DirectionInbound, Channel: inbound.ChannelVoice, ExternalID: "CA1", ReceivedAt: now, Status: inbound.StatusRouted},
		{ID: "8", AccountID: "a2", Direction: inbound.DirectionInbound, Channel: inbound.ChannelSMS, ExternalID: "SM1", ReceivedAt: now, Status: inbound.StatusSpam},
	}
	for _, e := range evs {
		if _, err := store.InsertEvent(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

func TestInboundSummary_CountsByOutcome(t *testing.T) {
	svc := NewService(NewMemoryRepo(seededEvents(t), nil))

	out, err := svc.InboundSummary(context.Background(), InboundSummaryRequest{AccountID: "a1", Range: window()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalMessages != 4 || out.Delivered != 1 || out.Held != 1 || out.Spam != 1 || out.Blocked != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.HighPriority != 1 || out.LowPriority != 1 || out.WithAttachments != 1 || out.SpamRate != 0.25 {
		t.Fatalf("unexpected summary: %+v", out)
	}
}

func TestCallsSummary_CountsLockedOutcomes(t *testing.T) {
	store := calls.NewMemoryStore()
	svc := calls.NewService(store, nil)
	ctx := context.Background()
	seed := []calls.Record{
		{AccountID: "a1", ExternalCallID: "CA1", Route: calls.RouteTransfer},
		{AccountID: "a1", ExternalCallID: "CA2", Route: calls.RouteForward},
		{AccountID: "a1", ExternalCallID: "CA3", Route: calls.RouteVoicemail},
		{AccountID: "a1", ExternalCallID: "CA4", Route: calls.RouteReject, Status: calls.StatusBlocked},
		{AccountID: "a2", ExternalCallID: "CA5", Route: calls.RouteForward},
	}
	for _, r := range seed {
		if _, _, err := svc.Start(ctx, r); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	_, _ = svc.ResolveScreening(ctx, "CA1", calls.ScreeningAccepted)
	_, _ = svc.ResolveScreening(ctx, "CA2", calls.ScreeningAccepted)
	_, _, _ = svc.ApplyStatus(ctx, "CA3", calls.StatusCompleted, 30)
	_ = svc.AttachVoicemail(ctx, "CA3", "https://rec/3")

	reports := NewService(NewMemoryRepo(nil, store))
	now := time.Now().UTC()
	out, err := reports.CallsSummary(ctx, CallsSummaryRequest{AccountID: "a1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.TransferredCalls != 1 || out.ForwardedCalls != 1 || out.BlockedCalls != 1 || out.CompletedCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.ScreeningAccepted != 2 || out.Voicemails != 1 || out.TotalDurationSeconds != 30 {
		t.Fatalf("unexpected summary: %+v", out)
	}
}

func TestReporting_InvalidRequests(t *testing.T) {
	svc := NewService(NewMemoryRepo(nil, nil))
	ctx := context.Background()

	if _, err := svc.InboundSummary(ctx, InboundSummaryRequest{Range: window()}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	backwards := TimeRange{From: now, To: now.Add(-time.Minute)}
	if _, err := svc.CallsSummary(ctx, CallsSummaryRequest{AccountID: "a1", Range: backwards}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
