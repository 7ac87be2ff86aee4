package inbound

import (
	"context"
	"sort"
	"sync"
	"time"

	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/trust"
)

// MemoryStore implements Accounts, Events and Conversations in memory.
// Useful for tests and local runs. It is not intended for production use.
type MemoryStore struct {
	mu            sync.Mutex
	accounts      map[string]Account
	byAddress     map[string]string
	events        []Event
	eventKeys     map[string]struct{}
	conversations map[string]ConversationSummary
}

func NewMemoryStore(accounts ...Account) *MemoryStore {
	m := &MemoryStore{
		accounts:      map[string]Account{},
		byAddress:     map[string]string{},
		eventKeys:     map[string]struct{}{},
		conversations: map[string]ConversationSummary{},
	}
	for _, a := range accounts {
		m.PutAccount(a)
	}
	return m
}

func (m *MemoryStore) PutAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	for _, addr := range a.Addresses {
		m.byAddress[trust.NormalizeAddress(addr)] = a.ID
	}
}

func (m *MemoryStore) FindByAddress(ctx context.Context, address string) (Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byAddress[trust.NormalizeAddress(address)]
	if !ok {
		return Account{}, false, nil
	}
	return m.accounts[id], true, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	return a, ok, nil
}

func (m *MemoryStore) InsertEvent(ctx context.Context, e Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.AccountID + "|" + e.ExternalID
	if _, dup := m.eventKeys[key]; dup {
		return false, nil
	}
	m.eventKeys[key] = struct{}{}
	m.events = append(m.events, e)
	return true, nil
}

func (m *MemoryStore) CountOutbound(ctx context.Context, accountID, counterpart string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.AccountID == accountID && e.Direction == DirectionOutbound && e.Channel == ChannelSMS && trust.SameAddress(e.To, counterpart) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) RecentHistory(ctx context.Context, accountID, counterpart string, limit int) ([]classify.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []classify.HistoryEntry
	for _, e := range m.events {
		if e.AccountID != accountID || e.Channel != ChannelSMS {
			continue
		}
		peer := e.From
		if e.Direction == DirectionOutbound {
			peer = e.To
		}
		if !trust.SameAddress(peer, counterpart) {
			continue
		}
		out = append(out, classify.HistoryEntry{Direction: string(e.Direction), Body: e.Body, At: e.ReceivedAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) CountCallsSince(ctx context.Context, accountID, counterpart string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.AccountID == accountID && e.Channel == ChannelVoice && e.Direction == DirectionInbound &&
			trust.SameAddress(e.From, counterpart) && !e.ReceivedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) UpsertSummary(ctx context.Context, s ConversationSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.AccountID + "|" + s.Counterpart
	cur, ok := m.conversations[key]
	if ok {
		s.Held = s.Held || cur.Held
		s.Unread += cur.Unread
	}
	m.conversations[key] = s
	return nil
}

// Events returns a copy of every stored event.
func (m *MemoryStore) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *MemoryStore) Conversation(accountID, counterpart string) (ConversationSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.conversations[accountID+"|"+counterpart]
	return s, ok
}
