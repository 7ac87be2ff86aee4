package calls

import "strings"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusInitiated  Status = "initiated"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"

	StatusTransferred Status = "transferred"
	StatusForwarded   Status = "forwarded"
	StatusBlocked     Status = "blocked"

	StatusCompleted Status = "completed"
	StatusBusy      Status = "busy"
	StatusNoAnswer  Status = "no-answer"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// AllStatuses lists every status NextStatus understands.
var AllStatuses = []Status{
	StatusQueued, StatusInitiated, StatusRinging, StatusInProgress,
	StatusTransferred, StatusForwarded, StatusBlocked,
	StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled,
}

var progressRank = map[Status]int{
	StatusQueued:     1,
	StatusInitiated:  2,
	StatusRinging:    3,
	StatusInProgress: 4,
}

// ParseStatus maps a gateway status string ("in_progress", "No-Answer") onto
// a Status. Unknown values return "".
func ParseStatus(s string) Status {
	st := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, known := range AllStatuses {
		if st == known {
			return st
		}
	}
	return ""
}

// Locked statuses absorb every later update.
func (s Status) Locked() bool {
	return s == StatusTransferred || s == StatusForwarded || s == StatusBlocked
}

// Terminal reports whether the call is over.
func (s Status) Terminal() bool {
	switch s {
	case StatusTransferred, StatusForwarded, StatusBlocked,
		StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// NextStatus computes the status after applying incoming to current.
// The bool is false when the record must not change.
//
//   - transferred, forwarded and blocked are never overwritten
//   - transferred and forwarded overwrite anything else
//   - the first generic terminal status wins
//   - in-flight statuses only move forward
//   - completed with zero duration is recorded as no-answer
func NextStatus(current, incoming Status, durationSeconds int) (Status, bool) {
	if incoming == StatusCompleted && durationSeconds <= 0 {
		incoming = StatusNoAnswer
	}
	if ParseStatus(string(incoming)) == "" {
		return current, false
	}
	if current.Locked() {
		return current, false
	}
	if incoming == current {
		return current, false
	}
	if incoming == StatusTransferred || incoming == StatusForwarded {
		return incoming, true
	}
	if current.Terminal() {
		return current, false
	}
	if incoming.Terminal() || current == "" {
		return incoming, true
	}
	if progressRank[incoming] > progressRank[current] {
		return incoming, true
	}
	return current, false
}
