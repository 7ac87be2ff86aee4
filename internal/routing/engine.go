package routing

import (
	"context"
	"errors"
	"sort"
	"time"

	"telecom-inbound/internal/trust"
	"telecom-inbound/pkg/logger"
)

// Store is the rule store contract. It returns rules with Active=true for
// the account and type; the engine re-checks schedule and order itself.
type Store interface {
	ListActiveRules(ctx context.Context, accountID string, t RuleType) ([]Rule, error)
}

// Engine evaluates an account's rules for one inbound event.
//
// No side effects: no writes, no provider calls. Rules are only read.
type Engine struct {
	Store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{Store: store}
}

var ErrInvalidArgument = errors.New("routing: invalid argument")

// candidates loads rules of one type that apply to sender on ch at now,
// ordered first-created first.
func (e *Engine) candidates(ctx context.Context, accountID string, t RuleType, s trust.Sender, ch Channel, now time.Time) ([]Rule, error) {
	if e.Store == nil {
		return nil, errors.New("routing: rule store not configured")
	}
	all, err := e.Store.ListActiveRules(ctx, accountID, t)
	if err != nil {
		return nil, err
	}

	out := make([]Rule, 0, len(all))
	for _, r := range all {
		if !r.Active || r.AccountID != accountID || r.Type != t {
			continue
		}
		if err := r.Schedule.Check(now); err != nil {
			logger.From(ctx).Debug("rule skipped", "rule_id", r.ID, "type", r.Type, "err", err)
			continue
		}
		if !r.Conditions.Matches(s, ch) {
			continue
		}
		out = append(out, r)
	}
	sortRules(out)
	return out, nil
}

func sortRules(rs []Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
