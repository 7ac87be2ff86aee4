package routing

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory rule store useful for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	rules []Rule
}

func NewMemoryStore(rules ...Rule) *MemoryStore {
	return &MemoryStore{rules: append([]Rule(nil), rules...)}
}

func (m *MemoryStore) Put(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == r.ID {
			m.rules[i] = r
			return
		}
	}
	m.rules = append(m.rules, r)
}

// ListActiveRules returns rules in insertion order; the engine sorts.
func (m *MemoryStore) ListActiveRules(ctx context.Context, accountID string, t RuleType) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Rule
	for _, r := range m.rules {
		if r.AccountID == accountID && r.Type == t && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}
