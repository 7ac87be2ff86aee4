package routing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore reads the rules table.
//
// NOTE: assumes
//
//	rules(id, account_id, type, active, priority, schedule JSONB,
//	      conditions JSONB, actions JSONB, transfer JSONB, created_at)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListActiveRules(ctx context.Context, accountID string, t RuleType) ([]Rule, error) {
	const q = `
SELECT id, account_id, type, active, priority, schedule, conditions, actions, transfer, created_at
FROM rules
WHERE account_id = $1 AND type = $2 AND active = TRUE
ORDER BY created_at ASC, id ASC
`
	rows, err := s.db.QueryContext(ctx, q, accountID, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var (
			r                                       Rule
			typ                                     string
			schedule, conditions, actions, transfer []byte
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &typ, &r.Active, &r.Priority, &schedule, &conditions, &actions, &transfer, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Type = RuleType(typ)
		for _, f := range []struct {
			name string
			raw  []byte
			dst  any
		}{
			{"schedule", schedule, &r.Schedule},
			{"conditions", conditions, &r.Conditions},
			{"actions", actions, &r.Actions},
			{"transfer", transfer, &r.Transfer},
		} {
			if len(f.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("routing: decode %s for rule %s: %w", f.name, r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
