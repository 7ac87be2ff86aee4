package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists call_records.
//
// NOTE: assumes UNIQUE (external_call_id).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectRecord = `
SELECT id, account_id, external_call_id, COALESCE(parent_call_id, ''), from_address, to_address,
       status, COALESCE(route, ''), COALESCE(target, ''), COALESCE(rule_id, ''), duration,
       COALESCE(screening_outcome, ''), COALESCE(voicemail_url, ''), created_at, updated_at
FROM call_records
`

func (s *PostgresStore) Create(ctx context.Context, r Record) (Record, bool, error) {
	const q = `
INSERT INTO call_records (
  id, account_id, external_call_id, parent_call_id, from_address, to_address,
  status, route, target, rule_id, duration, screening_outcome, created_at, updated_at
) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14)
ON CONFLICT (external_call_id) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q,
		r.ID, r.AccountID, r.ExternalCallID, r.ParentCallID, r.From, r.To,
		string(r.Status), string(r.Route), r.Target, r.RuleID, r.DurationSeconds, string(r.ScreeningOutcome),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return Record{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, err
	}
	if n == 1 {
		return r, true, nil
	}
	existing, err := s.Get(ctx, r.ExternalCallID)
	return existing, false, err
}

func (s *PostgresStore) Get(ctx context.Context, externalCallID string) (Record, error) {
	var (
		r                        Record
		status, route, screening string
	)
	err := s.db.QueryRowContext(ctx, selectRecord+`WHERE external_call_id = $1`, externalCallID).Scan(
		&r.ID, &r.AccountID, &r.ExternalCallID, &r.ParentCallID, &r.From, &r.To,
		&status, &route, &r.Target, &r.RuleID, &r.DurationSeconds,
		&screening, &r.VoicemailURL, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	r.Status, r.Route, r.ScreeningOutcome = Status(status), Route(route), ScreeningOutcome(screening)
	return r, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, externalCallID string, from, to Status, durationSeconds int) (bool, error) {
	const q = `
UPDATE call_records
SET status = $3,
    duration = CASE WHEN $4::int > 0 THEN $4::int ELSE duration END,
    updated_at = NOW()
WHERE external_call_id = $1 AND status = $2
`
	res, err := s.db.ExecContext(ctx, q, externalCallID, string(from), string(to), durationSeconds)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) SetScreening(ctx context.Context, externalCallID string, outcome ScreeningOutcome) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_records SET screening_outcome = $2, updated_at = NOW()
		WHERE external_call_id = $1 AND screening_outcome IS DISTINCT FROM $3`,
		externalCallID, string(outcome), string(ScreeningAccepted))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, externalCallID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) SetVoicemail(ctx context.Context, externalCallID, url string) error {
	return s.exec(ctx, `UPDATE call_records SET voicemail_url = $2, updated_at = NOW() WHERE external_call_id = $1`, externalCallID, url)
}

func (s *PostgresStore) exec(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
