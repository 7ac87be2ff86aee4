package reporting

import (
	"context"
	"errors"
	"time"

	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/inbound"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// MessageRow is the projection of an inbound message event reporting reads.
type MessageRow struct {
	Status      inbound.EventStatus
	Category    classify.Category
	Priority    classify.Priority
	Attachments int
	ReceivedAt  time.Time
}

// CallRow is the projection of a call record reporting reads.
type CallRow struct {
	Status           calls.Status
	Route            calls.Route
	ScreeningOutcome calls.ScreeningOutcome
	DurationSeconds  int
	HasVoicemail     bool
	CreatedAt        time.Time
}

// Repository abstracts data access for reporting.
//
// Implementations must filter by account and read only inbound messages.
type Repository interface {
	ListMessages(ctx context.Context, accountID string, from, to time.Time) ([]MessageRow, error)
	ListCalls(ctx context.Context, accountID string, from, to time.Time) ([]CallRow, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) InboundSummary(ctx context.Context, req InboundSummaryRequest) (InboundSummary, error) {
	if req.AccountID == "" || !req.Range.valid() {
		return InboundSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return InboundSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListMessages(ctx, req.AccountID, req.Range.From, req.Range.To)
	if err != nil {
		return InboundSummary{}, err
	}

	out := InboundSummary{AccountID: req.AccountID}
	for _, m := range rows {
		out.TotalMessages++
		if m.Attachments > 0 {
			out.WithAttachments++
		}
		switch m.Status {
		case inbound.StatusDelivered:
			out.Delivered++
		case inbound.StatusHeld:
			out.Held++
		case inbound.StatusSpam:
			out.Spam++
		case inbound.StatusBlocked:
			out.Blocked++
		}
		switch m.Priority {
		case classify.PriorityHigh:
			out.HighPriority++
		case classify.PriorityMedium:
			out.MediumPriority++
		case classify.PriorityLow:
			out.LowPriority++
		}
	}
	if out.TotalMessages > 0 {
		out.SpamRate = float64(out.Spam) / float64(out.TotalMessages)
	}
	return out, nil
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.AccountID == "" || !req.Range.valid() {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.AccountID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{AccountID: req.AccountID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.HasVoicemail {
			out.Voicemails++
		}
		switch c.Status {
		case calls.StatusTransferred:
			out.TransferredCalls++
		case calls.StatusForwarded:
			out.ForwardedCalls++
		case calls.StatusBlocked:
			out.BlockedCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusCanceled:
			out.CanceledCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		}
		switch c.ScreeningOutcome {
		case calls.ScreeningAccepted:
			out.ScreeningAccepted++
		case calls.ScreeningDeclined:
			out.ScreeningDeclined++
		case calls.ScreeningTimeout:
			out.ScreeningTimeout++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}
