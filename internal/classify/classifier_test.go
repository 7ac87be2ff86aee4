package classify

import (
	"context"
	"testing"
	"time"

	"telecom-inbound/internal/trust"
)

func fixedOracle(v Verdict, calls *int) Oracle {
	return OracleFunc(func(ctx context.Context, req OracleRequest) (Verdict, error) {
		*calls++
		return v, nil
	})
}

func TestClassify_SavedContactSkipsOracle(t *testing.T) {
	c := NewClassifier(OracleFunc(func(ctx context.Context, req OracleRequest) (Verdict, error) {
		t.Fatalf("oracle must not be called for saved contacts")
		return Verdict{}, nil
	}), nil, time.Second)

	r := c.Classify(context.Background(), Input{
		AccountID: "a1",
		Text:      "WIN a FREE cruise http://spam.example",
		Sender:    trust.Sender{Address: "+15550001111", IsSavedContact: true},
	})
	if r.Category != CategoryInbox || r.Trust != TrustHigh || !r.ShouldNotify || r.IsHeld || r.OracleCalls != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestClassify_EstablishedConsentRevoked(t *testing.T) {
	calls := 0
	var gotMode Mode
	c := NewClassifier(OracleFunc(func(ctx context.Context, req OracleRequest) (Verdict, error) {
		calls++
		gotMode = req.Mode
		return Verdict{IsSpam: true, SpamProbability: 92}, nil
	}), nil, time.Second)

	r := c.Classify(context.Background(), Input{
		AccountID:     "a1",
		Text:          "Final sale! 40% off today only",
		Sender:        trust.Sender{Address: "+15550002222"},
		OutboundCount: 1,
		History:       []HistoryEntry{{Direction: "outbound", Body: "STOP"}},
	})
	if r.Category != CategorySpam || !r.IsHeld || r.ShouldNotify || r.Trust != TrustMedium {
		t.Fatalf("unexpected result: %+v", r)
	}
	if calls != 1 || gotMode != ModeEstablished {
		t.Fatalf("calls=%d mode=%q", calls, gotMode)
	}
}

func TestClassify_EstablishedCasualIsInbox(t *testing.T) {
	calls := 0
	c := NewClassifier(fixedOracle(Verdict{SpamProbability: 10, Priority: PriorityMedium}, &calls), nil, time.Second)

	r := c.Classify(context.Background(), Input{AccountID: "a1", Text: "lol that was wild", OutboundCount: 4})
	if r.Category != CategoryInbox || !r.ShouldNotify || r.IsHeld || r.OracleCalls != 1 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestClassify_EstablishedEmptyTextSkipsOracle(t *testing.T) {
	calls := 0
	c := NewClassifier(fixedOracle(Verdict{IsSpam: true, SpamProbability: 99}, &calls), nil, time.Second)

	r := c.Classify(context.Background(), Input{AccountID: "a1", Text: "  ", OutboundCount: 1})
	if r.Category != CategoryInbox || calls != 0 {
		t.Fatalf("unexpected result: %+v calls=%d", r, calls)
	}
}

func TestClassify_FirstContactGreetingHeldWithoutOracle(t *testing.T) {
	calls := 0
	c := NewClassifier(fixedOracle(Verdict{IsSpam: true, SpamProbability: 99}, &calls), nil, time.Second)

	r := c.Classify(context.Background(), Input{AccountID: "a1", Text: "hey"})
	if r.Category != CategoryHeld || !r.IsHeld || r.ShouldNotify || r.Trust != TrustLow {
		t.Fatalf("unexpected result: %+v", r)
	}
	if calls != 0 || r.OracleCalls != 0 {
		t.Fatalf("oracle called for a short greeting")
	}
}

func TestClassify_FirstContactThreshold(t *testing.T) {
	text := "Congratulations, you have been selected for a $500 gift card, claim at http://x.example"
	cases := []struct {
		name string
		v    Verdict
		want Category
	}{
		{"confident spam", Verdict{IsSpam: true, SpamProbability: 95}, CategorySpam},
		{"at threshold", Verdict{IsSpam: true, SpamProbability: 70}, CategorySpam},
		{"below threshold", Verdict{IsSpam: true, SpamProbability: 69}, CategoryHeld},
		{"high probability but not spam", Verdict{IsSpam: false, SpamProbability: 90}, CategoryHeld},
		{"clean", Verdict{SpamProbability: 3}, CategoryHeld},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			c := NewClassifier(fixedOracle(tc.v, &calls), NewPolicy(Vocabulary{}, 70), time.Second)
			r := c.Classify(context.Background(), Input{AccountID: "a1", Text: text})
			if r.Category != tc.want {
				t.Fatalf("category = %s, want %s", r.Category, tc.want)
			}
			if r.Category == CategoryInbox || r.ShouldNotify || !r.IsHeld {
				t.Fatalf("first contact must never reach the inbox: %+v", r)
			}
			if calls != 1 {
				t.Fatalf("calls = %d", calls)
			}
		})
	}
}

func TestClassify_OracleTimeoutFailSafe(t *testing.T) {
	slow := OracleFunc(func(ctx context.Context, req OracleRequest) (Verdict, error) {
		<-ctx.Done()
		return Verdict{}, ErrClassificationTimeout
	})
	c := NewClassifier(slow, nil, 20*time.Millisecond)
	text := "Your package is waiting, confirm delivery details at our site"

	first := c.Classify(context.Background(), Input{AccountID: "a1", Text: text})
	if first.Category != CategoryHeld || !first.Degraded || first.ShouldNotify {
		t.Fatalf("first contact fail-safe: %+v", first)
	}

	known := c.Classify(context.Background(), Input{AccountID: "a1", Text: text, OutboundCount: 2})
	if known.Category != CategoryInbox || !known.Degraded || !known.ShouldNotify {
		t.Fatalf("established fail-safe: %+v", known)
	}
}

func TestClassify_MalformedVerdictFailSafe(t *testing.T) {
	bad := OracleFunc(func(ctx context.Context, req OracleRequest) (Verdict, error) {
		return Verdict{IsSpam: true, SpamProbability: 400}, nil
	})
	r := NewClassifier(bad, nil, time.Second).Classify(context.Background(), Input{
		AccountID: "a1",
		Text:      "Limited offer for new customers only, reply YES to join",
	})
	if r.Category != CategoryHeld || !r.Degraded {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestClassify_NilOracleIsDegraded(t *testing.T) {
	r := NewClassifier(nil, nil, time.Second).Classify(context.Background(), Input{
		AccountID: "a1", Text: "are you coming to the barbecue later", OutboundCount: 1,
	})
	if r.Category != CategoryInbox || !r.Degraded {
		t.Fatalf("unexpected result: %+v", r)
	}
}
