package registry

import (
	"context"
	"sync"
)

// AccountDirectory resolves a per-match entity to a persistent account.
// An empty id with a nil error marks a guest.
type AccountDirectory interface {
	Resolve(ctx context.Context, token, memberID string) (string, error)
}

// IdentityDirectory treats the logged member id as the account id.
type IdentityDirectory struct{}

// Resolve implements AccountDirectory.
func (IdentityDirectory) Resolve(_ context.Context, _ string, memberID string) (string, error) {
	return memberID, nil
}

// MapDirectory resolves member ids through an in-memory table. Unmapped
// members are guests.
type MapDirectory struct {
	mu       sync.RWMutex
	accounts map[string]string
}

// NewMapDirectory creates a directory seeded with memberID -> accountID.
func NewMapDirectory(seed map[string]string) *MapDirectory {
	d := &MapDirectory{accounts: make(map[string]string, len(seed))}
	for k, v := range seed {
		d.accounts[k] = v
	}
	return d
}

// Link maps a member id to an account.
func (d *MapDirectory) Link(memberID, accountID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[memberID] = accountID
}

// Resolve implements AccountDirectory.
func (d *MapDirectory) Resolve(_ context.Context, _ string, memberID string) (string, error) {
	if memberID == "" {
		return "", nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accounts[memberID], nil
}
