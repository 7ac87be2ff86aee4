package utils

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestClaimScriptsCompile(t *testing.T) {
	if claimScript == nil || releaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestClaimKey_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := ClaimKey(ctx, nil, "k", "o", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseKey(ctx, nil, "k", "o"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestClaimKey_RequiresPositiveTTL(t *testing.T) {
	if _, err := ClaimKey(context.Background(), redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "k", "o", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestRedisOptions_Defaults(t *testing.T) {
	o := RedisConfig{Addr: "localhost:6379", DB: 2}.options()
	if o.PoolSize != defaultRedisPoolSize || o.ReadTimeout != defaultRedisIOTimeout {
		t.Fatalf("unexpected defaults: pool=%d read=%s", o.PoolSize, o.ReadTimeout)
	}
	if o.DB != 2 || o.DialTimeout <= o.ReadTimeout {
		t.Fatalf("unexpected options: %+v", o)
	}
}
