package dialogue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telecom-inbound/pkg/utils"
)

// PostgresStore persists conversation_states.
//
// Replace serializes per counterpart with a transaction-scoped advisory lock
// and deactivates before it inserts. The partial unique index on active rows
// still catches writers that bypass the lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectState = `
SELECT id, account_id, counterpart, kind, active, rule_priority, expires_at,
       COALESCE(rule_id, ''), context, payload, created_at, updated_at
FROM conversation_states
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (State, error) {
	var (
		s           State
		kind        string
		expires     sql.NullTime
		ctxRaw, raw []byte
	)
	if err := row.Scan(&s.ID, &s.AccountID, &s.Counterpart, &kind, &s.Active, &s.RulePriority, &expires,
		&s.RuleID, &ctxRaw, &raw, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return State{}, err
	}
	k, err := ParseKind(kind)
	if err != nil {
		return State{}, err
	}
	s.Kind = k
	if expires.Valid {
		t := expires.Time
		s.ExpiresAt = &t
	}
	if len(ctxRaw) > 0 {
		if err := json.Unmarshal(ctxRaw, &s.Context); err != nil {
			return State{}, fmt.Errorf("dialogue: decode context for %s: %w", s.ID, err)
		}
	}
	if s.Payload, err = DecodePayload(k, raw); err != nil {
		return State{}, err
	}
	return s, nil
}

func (p *PostgresStore) FindActive(ctx context.Context, accountID, counterpart string) ([]State, error) {
	rows, err := p.db.QueryContext(ctx, selectState+`
WHERE account_id = $1 AND counterpart = $2 AND active = TRUE
ORDER BY created_at DESC`, accountID, counterpart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []State
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Latest(ctx context.Context, accountID, counterpart string) (State, bool, error) {
	s, err := scanState(p.db.QueryRowContext(ctx, selectState+`
WHERE account_id = $1 AND counterpart = $2
ORDER BY created_at DESC
LIMIT 1`, accountID, counterpart))
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return s, true, nil
}

func (p *PostgresStore) Replace(ctx context.Context, next State) error {
	ctxRaw, err := json.Marshal(next.Context)
	if err != nil {
		return err
	}
	payload, err := EncodePayload(next.Payload)
	if err != nil {
		return err
	}

	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || '|' || $2))`, next.AccountID, next.Counterpart); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE conversation_states SET active = FALSE, updated_at = $3
WHERE account_id = $1 AND counterpart = $2 AND active = TRUE`, next.AccountID, next.Counterpart, next.CreatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO conversation_states (
  id, account_id, counterpart, kind, active, rule_priority, expires_at, rule_id, context, payload, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)`,
			next.ID, next.AccountID, next.Counterpart, string(next.Kind), next.Active, next.RulePriority,
			next.ExpiresAt, next.RuleID, ctxRaw, payload, next.CreatedAt, next.UpdatedAt)
		if utils.IsUniqueViolation(err) {
			// Partial unique index on (account_id, counterpart) WHERE active.
			return fmt.Errorf("%w: concurrent activation for %s", ErrInvalidTransition, next.Counterpart)
		}
		return err
	})
}

func (p *PostgresStore) Deactivate(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE conversation_states SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) UpdateContext(ctx context.Context, id string, log []Exchange) error {
	raw, err := json.Marshal(log)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE conversation_states SET context = $2, updated_at = NOW() WHERE id = $1 AND active = TRUE`, id, raw)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
UPDATE conversation_states SET active = FALSE, updated_at = $1
WHERE active = TRUE AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
