package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to audit_events. The table has no UPDATE path.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, account_id, type, actor, counterpart, external_id, rule_id, message, metadata, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, '')::jsonb, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.AccountID, string(e.Type), e.Actor, e.Counterpart, e.ExternalID, e.RuleID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
