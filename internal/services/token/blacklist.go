package token

import (
	"sync"
	"time"
)

// Blacklist is a thread-safe set of revoked token IDs. Entries are kept
// until the token would have expired anyway.
type Blacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewBlacklist creates an empty blacklist
func NewBlacklist() *Blacklist {
	return &Blacklist{
		entries: make(map[string]time.Time),
	}
}

// Revoke adds a token ID until its natural expiry
func (b *Blacklist) Revoke(tokenID string, expiresAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[tokenID] = expiresAt
}

// IsRevoked reports whether a token ID has been revoked
func (b *Blacklist) IsRevoked(tokenID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[tokenID]
	return ok
}

// Cleanup drops entries whose token has expired and returns how many went
func (b *Blacklist) Cleanup(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, expiresAt := range b.entries {
		if !now.Before(expiresAt) {
			delete(b.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of revoked tokens still tracked
func (b *Blacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
