package classify

import "testing"

func TestPolicy_IsShortGreeting(t *testing.T) {
	p := NewPolicy(Vocabulary{}, 0)
	cases := map[string]bool{
		"hey":                        true,
		"Hi there!":                  true,
		"hello it's sam from work":   true,
		"good morning, are you free": true,
		"hi click http://x.co":       false,
		"you won!":                   false,
		"I WON a prize":              false,
		"hey, won't be late":         true,
		"hey, won’t be late":         true,
		"hi wonderful news":          true,
		"Get 50% off all items this weekend only at our store": false,
	}
	for in, want := range cases {
		if got := p.IsShortGreeting(in); got != want {
			t.Fatalf("IsShortGreeting(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPolicy_EffectivePriority(t *testing.T) {
	p := NewPolicy(Vocabulary{}, 0)
	cases := []struct {
		text   string
		oracle Priority
		want   Priority
	}{
		{"thanks!", PriorityHigh, PriorityLow},
		{"hey", "", PriorityLow},
		{"call me asap", PriorityLow, PriorityHigh},
		{"there was an accident", "", PriorityHigh},
		{"can we do the meeting", PriorityLow, PriorityHigh},
		{"see you at 3pm", "", PriorityHigh},
		{"back in 10 minutes", "", PriorityHigh},
		{"just checking in about the thing", PriorityLow, PriorityLow},
		{"just checking in about the thing", "", PriorityMedium},
	}
	for _, tc := range cases {
		if got := p.EffectivePriority(tc.text, tc.oracle); got != tc.want {
			t.Fatalf("EffectivePriority(%q, %q) = %q, want %q", tc.text, tc.oracle, got, tc.want)
		}
	}
}

func TestPolicy_EmergencyWordBoundaries(t *testing.T) {
	p := NewPolicy(Vocabulary{}, 0)
	if !p.IsEmergency("Call 911 now") {
		t.Fatalf("expected emergency")
	}
	if p.IsEmergency("policeman costume party") {
		t.Fatalf("expected whole-word match only")
	}
}

func TestPolicy_CustomVocabulary(t *testing.T) {
	p := NewPolicy(Vocabulary{Emergency: []string{"code red"}}, 0)
	if !p.IsEmergency("we have a CODE RED") {
		t.Fatalf("expected custom emergency phrase to match")
	}
	if p.IsEmergency("call 911") {
		t.Fatalf("custom list should replace the defaults")
	}
	if p.spamThreshold != defaultFirstContactSpamThreshold {
		t.Fatalf("threshold = %d", p.spamThreshold)
	}
}
