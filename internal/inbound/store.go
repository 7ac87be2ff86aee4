package inbound

import (
	"context"
	"time"

	"telecom-inbound/internal/classify"
)

// Accounts resolves which account owns a gateway address.
type Accounts interface {
	FindByAddress(ctx context.Context, address string) (Account, bool, error)
	Get(ctx context.Context, id string) (Account, bool, error)
}

// Events is the event store. InsertEvent is the authoritative dedup guard.
type Events interface {
	// InsertEvent stores e unless (AccountID, ExternalID) exists; inserted
	// is false for redeliveries.
	InsertEvent(ctx context.Context, e Event) (bool, error)
	CountOutbound(ctx context.Context, accountID, counterpart string) (int, error)
	// RecentHistory returns up to limit messages with counterpart, oldest first.
	RecentHistory(ctx context.Context, accountID, counterpart string, limit int) ([]classify.HistoryEntry, error)
	CountCallsSince(ctx context.Context, accountID, counterpart string, since time.Time) (int, error)
}

type Conversations interface {
	UpsertSummary(ctx context.Context, s ConversationSummary) error
}
