package inbound

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"telecom-inbound/internal/classify"
)

// PostgresStore implements Accounts, Events and Conversations.
//
// NOTE: assumes
//
//	accounts(id, personal_number), account_addresses(address PRIMARY KEY, account_id)
//	inbound_events UNIQUE (account_id, external_id)
//	conversations PRIMARY KEY (account_id, counterpart)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) FindByAddress(ctx context.Context, address string) (Account, bool, error) {
	var id string
	err := p.db.QueryRowContext(ctx, `SELECT account_id FROM account_addresses WHERE address = $1`, address).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return p.Get(ctx, id)
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Account, bool, error) {
	a := Account{ID: id}
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(personal_number, '') FROM accounts WHERE id = $1`, id).Scan(&a.PersonalNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}

	rows, err := p.db.QueryContext(ctx, `SELECT address FROM account_addresses WHERE account_id = $1 ORDER BY address`, id)
	if err != nil {
		return Account{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return Account{}, false, err
		}
		a.Addresses = append(a.Addresses, addr)
	}
	return a, true, rows.Err()
}

// InsertEvent is a single conditional insert, so two concurrent deliveries
// of the same external id cannot both report inserted.
func (p *PostgresStore) InsertEvent(ctx context.Context, e Event) (bool, error) {
	attachments, err := json.Marshal(e.Attachments)
	if err != nil {
		return false, err
	}
	const q = `
INSERT INTO inbound_events (
  id, account_id, direction, channel, from_address, to_address, external_id, body, attachments,
  received_at, status, category, priority, held, spam_probability
) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''), $14, $15)
ON CONFLICT (account_id, external_id) DO NOTHING
`
	res, err := p.db.ExecContext(ctx, q,
		e.ID, e.AccountID, string(e.Direction), string(e.Channel), e.From, e.To, e.ExternalID, e.Body, attachments,
		e.ReceivedAt, string(e.Status), string(e.Category), string(e.Priority), e.Held, e.SpamProbability,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *PostgresStore) CountOutbound(ctx context.Context, accountID, counterpart string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM inbound_events
WHERE account_id = $1 AND direction = 'outbound' AND channel = 'sms' AND to_address = $2`, accountID, counterpart).Scan(&n)
	return n, err
}

func (p *PostgresStore) RecentHistory(ctx context.Context, accountID, counterpart string, limit int) ([]classify.HistoryEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT direction, COALESCE(body, ''), received_at FROM (
  SELECT direction, body, received_at FROM inbound_events
  WHERE account_id = $1 AND channel = 'sms'
    AND ((direction = 'inbound' AND from_address = $2) OR (direction = 'outbound' AND to_address = $2))
  ORDER BY received_at DESC
  LIMIT $3
) recent
ORDER BY received_at ASC`, accountID, counterpart, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []classify.HistoryEntry
	for rows.Next() {
		var h classify.HistoryEntry
		if err := rows.Scan(&h.Direction, &h.Body, &h.At); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountCallsSince(ctx context.Context, accountID, counterpart string, since time.Time) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM inbound_events
WHERE account_id = $1 AND channel = 'voice' AND direction = 'inbound' AND from_address = $2 AND received_at >= $3`,
		accountID, counterpart, since).Scan(&n)
	return n, err
}

// UpsertSummary never clears held: the stored flag is OR-ed with the new one.
func (p *PostgresStore) UpsertSummary(ctx context.Context, s ConversationSummary) error {
	const q = `
INSERT INTO conversations (account_id, counterpart, last_message, last_at, unread, held, priority, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (account_id, counterpart) DO UPDATE SET
  last_message = EXCLUDED.last_message,
  last_at = EXCLUDED.last_at,
  unread = conversations.unread + EXCLUDED.unread,
  held = conversations.held OR EXCLUDED.held,
  priority = EXCLUDED.priority,
  updated_at = NOW()
`
	_, err := p.db.ExecContext(ctx, q, s.AccountID, s.Counterpart, s.LastMessage, s.LastAt, s.Unread, s.Held, string(s.Priority))
	return err
}
