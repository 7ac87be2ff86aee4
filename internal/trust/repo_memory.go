package trust

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory directory useful for tests.
// It is not intended for production use.
type MemoryDirectory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

func NewMemoryDirectory(contacts ...Contact) *MemoryDirectory {
	d := &MemoryDirectory{contacts: map[string]Contact{}}
	for _, c := range contacts {
		d.Put(c)
	}
	return d
}

func (d *MemoryDirectory) Put(c Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.Address = NormalizeAddress(c.Address)
	d.contacts[c.AccountID+"|"+c.Address] = c
}

func (d *MemoryDirectory) FindContact(ctx context.Context, accountID, address string) (Contact, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[accountID+"|"+NormalizeAddress(address)]
	return c, ok, nil
}
