package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is the subset of client options the service exposes.
// Zero values fall back to the package defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize int
	// IOTimeout bounds dial, read and write.
	IOTimeout   time.Duration
	PingTimeout time.Duration
}

const (
	defaultRedisPoolSize  = 20
	defaultRedisIOTimeout = 2 * time.Second
)

var errNilRedis = errors.New("redis client is nil")

func (c RedisConfig) options() *redis.Options {
	pool := c.PoolSize
	if pool <= 0 {
		pool = defaultRedisPoolSize
	}
	io := c.IOTimeout
	if io <= 0 {
		io = defaultRedisIOTimeout
	}
	return &redis.Options{
		Addr:            c.Addr,
		Password:        c.Password,
		DB:              c.DB,
		PoolSize:        pool,
		DialTimeout:     io + time.Second,
		ReadTimeout:     io,
		WriteTimeout:    io,
		PoolTimeout:     2 * io,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// OpenRedis builds a client and fails fast if the server does not answer PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	rdb := redis.NewClient(cfg.options())

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultRedisIOTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// claimScript sets KEYS[1] to ARGV[1] with a PX of ARGV[2] unless another
// owner holds it. The holder may re-claim, which refreshes the TTL.
var claimScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false or cur == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
return 0
`)

// releaseScript deletes KEYS[1] only while ARGV[1] still owns it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call('DEL', KEYS[1])
`)

// ClaimKey takes key for owner until ttl elapses. It reports false when a
// different owner holds the key.
func ClaimKey(ctx context.Context, rdb redis.Scripter, key, owner string, ttl time.Duration) (bool, error) {
	if err := checkClaimArgs(rdb, key, owner); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, fmt.Errorf("claim %s: ttl must be > 0", key)
	}
	n, err := claimScript.Run(ctx, rdb, []string{key}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return n == 1, nil
}

// ReleaseKey drops owner's claim. Releasing a claim held by someone else,
// or one that already expired, is a no-op.
func ReleaseKey(ctx context.Context, rdb redis.Scripter, key, owner string) error {
	if err := checkClaimArgs(rdb, key, owner); err != nil {
		return err
	}
	if err := releaseScript.Run(ctx, rdb, []string{key}, owner).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func checkClaimArgs(rdb redis.Scripter, key, owner string) error {
	if rdb == nil {
		return errNilRedis
	}
	if key == "" || owner == "" {
		return errors.New("claim key and owner are required")
	}
	return nil
}
