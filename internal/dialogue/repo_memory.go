package dialogue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory state store useful for tests.
// It is not intended for production use.
type MemoryStore struct {
	mu     sync.Mutex
	states []State
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) FindActive(ctx context.Context, accountID, counterpart string) ([]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []State
	for _, s := range m.states {
		if s.Active && s.AccountID == accountID && s.Counterpart == counterpart {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Latest(ctx context.Context, accountID, counterpart string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.states) - 1; i >= 0; i-- {
		s := m.states[i]
		if s.AccountID == accountID && s.Counterpart == counterpart {
			return s, true, nil
		}
	}
	return State{}, false, nil
}

func (m *MemoryStore) Replace(ctx context.Context, next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.states {
		s := &m.states[i]
		if s.Active && s.AccountID == next.AccountID && s.Counterpart == next.Counterpart {
			s.Active = false
			s.UpdatedAt = next.CreatedAt
		}
	}
	m.states = append(m.states, next)
	return nil
}

func (m *MemoryStore) Deactivate(ctx context.Context, id string) error {
	return m.mutate(id, func(s *State) { s.Active = false })
}

func (m *MemoryStore) UpdateContext(ctx context.Context, id string, log []Exchange) error {
	return m.mutate(id, func(s *State) { s.Context = append([]Exchange(nil), log...) })
}

func (m *MemoryStore) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.states {
		s := &m.states[i]
		if s.Active && s.Expired(now) {
			s.Active = false
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) mutate(id string, fn func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.states {
		if m.states[i].ID == id {
			fn(&m.states[i])
			m.states[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// All returns every stored state, oldest first.
func (m *MemoryStore) All() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.states...)
}
