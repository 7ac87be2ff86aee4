package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory call store useful for tests.
// It is not intended for production use.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

func (m *MemoryStore) Create(ctx context.Context, r Record) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[r.ExternalCallID]; ok {
		return existing, false, nil
	}
	m.records[r.ExternalCallID] = r
	return r, true, nil
}

func (m *MemoryStore) Get(ctx context.Context, externalCallID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[externalCallID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, externalCallID string, from, to Status, durationSeconds int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[externalCallID]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	if durationSeconds > 0 {
		r.DurationSeconds = durationSeconds
	}
	r.UpdatedAt = time.Now().UTC()
	m.records[externalCallID] = r
	return true, nil
}

func (m *MemoryStore) SetScreening(ctx context.Context, externalCallID string, outcome ScreeningOutcome) (bool, error) {
	set := false
	err := m.mutate(externalCallID, func(r *Record) {
		if r.ScreeningOutcome == ScreeningAccepted {
			return
		}
		r.ScreeningOutcome = outcome
		set = true
	})
	return set, err
}

func (m *MemoryStore) SetVoicemail(ctx context.Context, externalCallID, url string) error {
	return m.mutate(externalCallID, func(r *Record) { r.VoicemailURL = url })
}

func (m *MemoryStore) mutate(externalCallID string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[externalCallID]
	if !ok {
		return ErrNotFound
	}
	fn(&r)
	r.UpdatedAt = time.Now().UTC()
	m.records[externalCallID] = r
	return nil
}

// All returns every record, for reporting in tests.
func (m *MemoryStore) All() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}
