package dialogue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the kind-specific part of a State. Payloads are opaque to
// transition logic; only Kind, priority and TTL drive preemption.
type Payload interface {
	Kind() Kind
}

type DeflectionPayload struct {
	ReplyText string `json:"reply_text,omitempty"`
	Replies   int    `json:"replies"`
}

type SchedulingPayload struct {
	Slots     []time.Time `json:"slots,omitempty"`
	Selected  int         `json:"selected"`
	Confirmed bool        `json:"confirmed"`
}

type DNDPayload struct {
	Until time.Time `json:"until,omitempty"`
}

// BypassPayload remembers the state the bypass preempted.
type BypassPayload struct {
	OriginalKind Kind      `json:"original_state,omitempty"`
	Until        time.Time `json:"until,omitempty"`
}

type ScreeningPayload struct {
	Challenges int    `json:"challenges"`
	NameGuess  string `json:"name_guess,omitempty"`
}

type ForwardWaitPayload struct {
	ForwardedTo string `json:"forwarded_to,omitempty"`
}

type DestroyedPayload struct {
	Reason   string `json:"reason,omitempty"`
	Previous Kind   `json:"previous,omitempty"`
}

func (DeflectionPayload) Kind() Kind  { return KindActiveDeflection }
func (SchedulingPayload) Kind() Kind  { return KindScheduling }
func (DNDPayload) Kind() Kind         { return KindDoNotDisturb }
func (BypassPayload) Kind() Kind      { return KindTempBypass }
func (ScreeningPayload) Kind() Kind   { return KindScreening }
func (ForwardWaitPayload) Kind() Kind { return KindAwaitingForward }
func (DestroyedPayload) Kind() Kind   { return KindDestroyed }

// emptyPayload returns the zero payload for k.
func emptyPayload(k Kind) (Payload, error) {
	switch k {
	case KindActiveDeflection:
		return DeflectionPayload{}, nil
	case KindScheduling:
		return SchedulingPayload{}, nil
	case KindDoNotDisturb:
		return DNDPayload{}, nil
	case KindTempBypass:
		return BypassPayload{}, nil
	case KindScreening:
		return ScreeningPayload{}, nil
	case KindAwaitingForward:
		return ForwardWaitPayload{}, nil
	case KindDestroyed:
		return DestroyedPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
}

// EncodePayload serializes p for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// DecodePayload restores the payload for kind k. Empty input yields the
// zero payload.
func DecodePayload(k Kind, raw []byte) (Payload, error) {
	switch k {
	case KindActiveDeflection:
		return decodeInto[DeflectionPayload](raw)
	case KindScheduling:
		return decodeInto[SchedulingPayload](raw)
	case KindDoNotDisturb:
		return decodeInto[DNDPayload](raw)
	case KindTempBypass:
		return decodeInto[BypassPayload](raw)
	case KindScreening:
		return decodeInto[ScreeningPayload](raw)
	case KindAwaitingForward:
		return decodeInto[ForwardWaitPayload](raw)
	case KindDestroyed:
		return decodeInto[DestroyedPayload](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
}

func decodeInto[T Payload](raw []byte) (Payload, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("dialogue: decode %s payload: %w", v.Kind(), err)
	}
	return v, nil
}
