package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

// Account isolation: AccountID is required on every request.

type InboundSummaryRequest struct {
	AccountID string    `json:"account_id"`
	Range     TimeRange `json:"range"`
}

// InboundSummary counts inbound messages by routing outcome.
type InboundSummary struct {
	AccountID string `json:"account_id"`

	TotalMessages int `json:"total_messages"`
	Delivered     int `json:"delivered"`
	Held          int `json:"held"`
	Spam          int `json:"spam"`
	Blocked       int `json:"blocked"`

	HighPriority   int `json:"high_priority"`
	MediumPriority int `json:"medium_priority"`
	LowPriority    int `json:"low_priority"`

	WithAttachments int `json:"with_attachments"`
	// SpamRate is Spam / TotalMessages.
	SpamRate float64 `json:"spam_rate"`
}

type CallsSummaryRequest struct {
	AccountID string    `json:"account_id"`
	Range     TimeRange `json:"range"`
}

type CallsSummary struct {
	AccountID string `json:"account_id"`

	TotalCalls       int `json:"total_calls"`
	TransferredCalls int `json:"transferred_calls"`
	ForwardedCalls   int `json:"forwarded_calls"`
	BlockedCalls     int `json:"blocked_calls"`
	CompletedCalls   int `json:"completed_calls"`
	NoAnswerCalls    int `json:"no_answer_calls"`
	BusyCalls        int `json:"busy_calls"`
	FailedCalls      int `json:"failed_calls"`
	CanceledCalls    int `json:"canceled_calls"`
	InProgressCalls  int `json:"in_progress_calls"`

	ScreeningAccepted int `json:"screening_accepted"`
	ScreeningDeclined int `json:"screening_declined"`
	ScreeningTimeout  int `json:"screening_timeout"`
	Voicemails        int `json:"voicemails"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}
