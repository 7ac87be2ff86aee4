package trust

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresDirectory reads the contacts table.
//
// NOTE: assumes
//
//	contacts(id, account_id, address, name, favorite, blocked, tags JSONB)
//	UNIQUE (account_id, address) with address stored normalized.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindContact(ctx context.Context, accountID, address string) (Contact, bool, error) {
	const q = `
SELECT id, account_id, address, COALESCE(name, ''), favorite, blocked, tags
FROM contacts
WHERE account_id = $1 AND address = $2
LIMIT 1
`
	var (
		c    Contact
		tags []byte
	)
	err := d.db.QueryRowContext(ctx, q, accountID, NormalizeAddress(address)).Scan(
		&c.ID,
		&c.AccountID,
		&c.Address,
		&c.Name,
		&c.Favorite,
		&c.Blocked,
		&tags,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, false, nil
		}
		return Contact{}, false, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &c.Tags); err != nil {
			return Contact{}, false, fmt.Errorf("trust: decode tags for contact %s: %w", c.ID, err)
		}
	}
	return c, true, nil
}
