// Package idempotency is the fast-path dedup guard for webhook redeliveries.
// The authoritative guard is the conditional event insert; a claim only
// keeps two concurrent deliveries from both doing the expensive work.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"telecom-inbound/pkg/utils"
)

var ErrInvalidArgument = errors.New("idempotency: invalid argument")

// Ticket identifies a held claim so only its holder can release it.
type Ticket struct {
	Key   string
	Owner string
}

type Claimer interface {
	// Claim reports false when another delivery already holds the key.
	Claim(ctx context.Context, accountID, externalID string) (Ticket, bool, error)
	// Release gives the claim back after a failed attempt so a gateway retry
	// can run. Successful deliveries keep their claim until it expires.
	Release(ctx context.Context, t Ticket) error
}

func Key(accountID, externalID string) string {
	return "inbound:dedup:" + accountID + ":" + externalID
}

// RedisClaimer holds claims in Redis with a TTL.
type RedisClaimer struct {
	rdb redis.Scripter
	ttl time.Duration
}

func NewRedisClaimer(rdb redis.Scripter, ttl time.Duration) *RedisClaimer {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisClaimer{rdb: rdb, ttl: ttl}
}

func (c *RedisClaimer) Claim(ctx context.Context, accountID, externalID string) (Ticket, bool, error) {
	if accountID == "" || externalID == "" {
		return Ticket{}, false, ErrInvalidArgument
	}
	t := Ticket{Key: Key(accountID, externalID), Owner: uuid.NewString()}
	ok, err := utils.ClaimKey(ctx, c.rdb, t.Key, t.Owner, c.ttl)
	if err != nil {
		return Ticket{}, false, err
	}
	return t, ok, nil
}

func (c *RedisClaimer) Release(ctx context.Context, t Ticket) error {
	if t.Key == "" {
		return nil
	}
	return utils.ReleaseKey(ctx, c.rdb, t.Key, t.Owner)
}

// MemoryClaimer is an in-process Claimer for tests and single-node runs.
type MemoryClaimer struct {
	mu     sync.Mutex
	ttl    time.Duration
	clock  func() time.Time
	claims map[string]memoryClaim
}

type memoryClaim struct {
	owner   string
	expires time.Time
}

func NewMemoryClaimer(ttl time.Duration) *MemoryClaimer {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &MemoryClaimer{ttl: ttl, clock: time.Now, claims: map[string]memoryClaim{}}
}

func (c *MemoryClaimer) Claim(ctx context.Context, accountID, externalID string) (Ticket, bool, error) {
	if accountID == "" || externalID == "" {
		return Ticket{}, false, ErrInvalidArgument
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	key := Key(accountID, externalID)
	if cur, ok := c.claims[key]; ok && now.Before(cur.expires) {
		return Ticket{}, false, nil
	}
	t := Ticket{Key: key, Owner: uuid.NewString()}
	c.claims[key] = memoryClaim{owner: t.Owner, expires: now.Add(c.ttl)}
	return t, true, nil
}

func (c *MemoryClaimer) Release(ctx context.Context, t Ticket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.claims[t.Key]; ok && cur.owner == t.Owner {
		delete(c.claims, t.Key)
	}
	return nil
}
