package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresPoolConfig sizes the database/sql pool. Zero values use defaults.
type PostgresPoolConfig struct {
	MaxConns    int
	PingTimeout time.Duration
}

const (
	defaultMaxConns    = 25
	defaultPingTimeout = 5 * time.Second
)

// OpenPostgres opens dsn with driverName ("pgx" for the pgx stdlib driver)
// and pings it before returning. Never log dsn.
func OpenPostgres(ctx context.Context, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	n := pool.MaxConns
	if n <= 0 {
		n = defaultMaxConns
	}
	// Idle == open: webhook bursts should not pay for reconnects.
	db.SetMaxOpenConns(n)
	db.SetMaxIdleConns(n)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	timeout := pool.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	if err := HealthCheck(ctx, db, timeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// HealthCheck pings db, giving up after timeout.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if db == nil {
		return errors.New("db is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx commits when fn returns nil and rolls back otherwise. A panic in fn
// rolls back and is re-raised.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	if db == nil {
		return errors.New("db is nil")
	}
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// IsUniqueViolation reports whether err wraps SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
