package dialogue

import (
	"errors"
	"testing"
	"time"
)

func TestParseKind_Aliases(t *testing.T) {
	cases := map[string]Kind{
		"ACTIVE_DEFLECTION": KindActiveDeflection,
		"bound":             KindActiveDeflection,
		"deflecting":        KindActiveDeflection,
		" dnd ":             KindDoNotDisturb,
		"destroyed":         KindDestroyed,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("LIMBO"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestPayloadRoundTripKeepsKind(t *testing.T) {
	in := SchedulingPayload{Slots: []time.Time{time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}, Selected: 0, Confirmed: true}
	raw, err := EncodePayload(in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	out, err := DecodePayload(KindScheduling, raw)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	sp, ok := out.(SchedulingPayload)
	if !ok || !sp.Confirmed || len(sp.Slots) != 1 || !sp.Slots[0].Equal(in.Slots[0]) {
		t.Fatalf("unexpected payload: %#v", out)
	}

	empty, err := DecodePayload(KindScreening, nil)
	if err != nil || empty.Kind() != KindScreening {
		t.Fatalf("empty payload: %#v %v", empty, err)
	}
	if _, err := DecodePayload(KindIdle, raw); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("IDLE has no payload, got %v", err)
	}
}
