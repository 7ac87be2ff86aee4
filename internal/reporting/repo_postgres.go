package reporting

import (
	"context"
	"database/sql"
	"time"

	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/inbound"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (p *PostgresRepo) ListMessages(ctx context.Context, accountID string, from, to time.Time) ([]MessageRow, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT status, COALESCE(category, ''), COALESCE(priority, ''),
       COALESCE(jsonb_array_length(attachments), 0), received_at
FROM inbound_events
WHERE account_id = $1 AND direction = 'inbound' AND channel = 'sms'
  AND received_at >= $2 AND received_at < $3`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MessageRow, 0)
	for rows.Next() {
		var (
			m                          MessageRow
			status, category, priority string
		)
		if err := rows.Scan(&status, &category, &priority, &m.Attachments, &m.ReceivedAt); err != nil {
			return nil, err
		}
		m.Status, m.Category, m.Priority = inbound.EventStatus(status), classify.Category(category), classify.Priority(priority)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) ListCalls(ctx context.Context, accountID string, from, to time.Time) ([]CallRow, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT status, COALESCE(route, ''), COALESCE(screening_outcome, ''), duration,
       voicemail_url IS NOT NULL, created_at
FROM call_records
WHERE account_id = $1 AND created_at >= $2 AND created_at < $3`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRow, 0)
	for rows.Next() {
		var (
			c                        CallRow
			status, route, screening string
		)
		if err := rows.Scan(&status, &route, &screening, &c.DurationSeconds, &c.HasVoicemail, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Status, c.Route, c.ScreeningOutcome = calls.Status(status), calls.Route(route), calls.ScreeningOutcome(screening)
		out = append(out, c)
	}
	return out, rows.Err()
}
