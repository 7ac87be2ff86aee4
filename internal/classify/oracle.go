package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Oracle is the opaque text-classification backend.
// Callers bound each call with a context deadline; implementations must
// honor ctx and return ErrClassificationTimeout when it expires.
type Oracle interface {
	Classify(ctx context.Context, req OracleRequest) (Verdict, error)
}

// OracleFunc adapts a function into an Oracle.
type OracleFunc func(ctx context.Context, req OracleRequest) (Verdict, error)

func (f OracleFunc) Classify(ctx context.Context, req OracleRequest) (Verdict, error) {
	return f(ctx, req)
}

// CachedOracle memoizes validated verdicts in Redis so a redelivered
// webhook that slips past dedup does not pay for a second classification.
type CachedOracle struct {
	Inner Oracle
	Cache redis.Cmdable
	TTL   time.Duration
}

func NewCachedOracle(inner Oracle, cache redis.Cmdable, ttl time.Duration) *CachedOracle {
	return &CachedOracle{Inner: inner, Cache: cache, TTL: ttl}
}

func (o *CachedOracle) Classify(ctx context.Context, req OracleRequest) (Verdict, error) {
	if o.Inner == nil {
		return Verdict{}, errors.New("classify: inner oracle is nil")
	}
	if o.Cache == nil || o.TTL <= 0 {
		return o.Inner.Classify(ctx, req)
	}

	key := cacheKey(req)
	if raw, err := o.Cache.Get(ctx, key).Bytes(); err == nil {
		var v Verdict
		if json.Unmarshal(raw, &v) == nil {
			if valid, err := ValidateVerdict(v); err == nil {
				return valid, nil
			}
		}
	}

	v, err := o.Inner.Classify(ctx, req)
	if err != nil {
		return Verdict{}, err
	}
	if raw, err := json.Marshal(v); err == nil {
		// Cache writes are best effort; the verdict is already in hand.
		_ = o.Cache.Set(ctx, key, raw, o.TTL).Err()
	}
	return v, nil
}

// cacheKey covers everything that can change the answer: mode, text,
// sender trust and how much history the oracle saw.
func cacheKey(req OracleRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Mode))
	h.Write([]byte{0})
	h.Write([]byte(req.Sender.Trust))
	h.Write([]byte{0})
	h.Write([]byte(req.Sender.Address))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	for _, e := range req.History {
		h.Write([]byte{0})
		h.Write([]byte(e.Direction))
		h.Write([]byte(e.Body))
	}
	return "classify:verdict:" + hex.EncodeToString(h.Sum(nil))
}
