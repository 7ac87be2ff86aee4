// Package dialogue keeps the per-counterpart conversation state that lets an
// automation survive across follow-up messages.
package dialogue

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindIdle             Kind = "IDLE"
	KindActiveDeflection Kind = "ACTIVE_DEFLECTION"
	KindScheduling       Kind = "SCHEDULING_NEGOTIATION"
	KindDoNotDisturb     Kind = "DO_NOT_DISTURB"
	KindTempBypass       Kind = "TEMP_BYPASS"
	KindScreening        Kind = "SCREENING"
	KindAwaitingForward  Kind = "AWAITING_FORWARD_RESPONSE"
	KindDestroyed        Kind = "DESTROYED"
)

var ErrUnknownKind = errors.New("dialogue: unknown state kind")

// aliases are legacy names still sent by older clients. They are accepted on
// input and never stored.
var aliases = map[string]Kind{
	"BOUND":      KindActiveDeflection,
	"DEFLECTING": KindActiveDeflection,
	"DEFLECTION": KindActiveDeflection,
	"SCHEDULING": KindScheduling,
	"DND":        KindDoNotDisturb,
	"BYPASS":     KindTempBypass,
}

// ParseKind accepts canonical names and legacy aliases, case-insensitively.
func ParseKind(s string) (Kind, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	switch k := Kind(up); k {
	case KindIdle, KindActiveDeflection, KindScheduling, KindDoNotDisturb,
		KindTempBypass, KindScreening, KindAwaitingForward, KindDestroyed:
		return k, nil
	}
	if k, ok := aliases[up]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Triggerable reports whether a rule or API call may create this kind.
// IDLE is the absence of state and DESTROYED is only written by Emergency.
func (k Kind) Triggerable() bool {
	switch k {
	case KindActiveDeflection, KindScheduling, KindDoNotDisturb,
		KindTempBypass, KindScreening, KindAwaitingForward:
		return true
	default:
		return false
	}
}
