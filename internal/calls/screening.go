package calls

import (
	"errors"
	"strings"
)

// ScreeningOutcome is the result of the accept prompt on a dialed leg.
// Carrier voicemail cannot press a digit, so only a human reaches ACCEPTED.
type ScreeningOutcome string

const (
	ScreeningDialing  ScreeningOutcome = "DIALING"
	ScreeningAccepted ScreeningOutcome = "ACCEPTED"
	ScreeningDeclined ScreeningOutcome = "DECLINED"
	ScreeningTimeout  ScreeningOutcome = "TIMEOUT"
)

// AcceptDigit is the only digit that bridges a screened call.
const AcceptDigit = "1"

var (
	ErrScreeningTimeout  = errors.New("calls: screening timed out")
	ErrScreeningDeclined = errors.New("calls: screening declined")
)

// ScreenDigit maps a gather result onto an outcome.
func ScreenDigit(digits string, timedOut bool) ScreeningOutcome {
	d := strings.TrimSpace(digits)
	switch {
	case timedOut || d == "":
		return ScreeningTimeout
	case d == AcceptDigit:
		return ScreeningAccepted
	default:
		return ScreeningDeclined
	}
}

// Err returns nil for ACCEPTED. A timeout is handled exactly like a decline
// by callers; the distinct error only feeds logs.
func (o ScreeningOutcome) Err() error {
	switch o {
	case ScreeningAccepted:
		return nil
	case ScreeningTimeout:
		return ErrScreeningTimeout
	case ScreeningDeclined:
		return ErrScreeningDeclined
	default:
		return errors.New("calls: screening unresolved")
	}
}
