// Package presence tracks which identities currently hold a live connection.
package presence

import (
	"cmp"
	"slices"
	"sync"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/model"
)

// Registry maps online identities to their current connection. Only one
// connection per identity is tracked; a later Register replaces an earlier
// one. Reads return copies so callers can iterate without holding the lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[model.AccountID]*model.PresenceEntry
	clock   clock.Clock
}

// NewRegistry creates an empty registry
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		entries: make(map[model.AccountID]*model.PresenceEntry),
		clock:   clk,
	}
}

// Register records identity as online through connID
func (r *Registry) Register(identity model.Identity, connID string, score int64) model.PresenceEntry {
	now := r.clock.Now()
	entry := &model.PresenceEntry{
		Identity:    identity,
		ConnID:      connID,
		CachedScore: score,
		ConnectedAt: now,
		LastSeenAt:  now,
	}

	r.mu.Lock()
	r.entries[identity.ID] = entry
	r.mu.Unlock()
	return *entry
}

// Unregister removes the entry for id, whichever connection owns it
func (r *Registry) Unregister(id model.AccountID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Release removes the entry for id only if connID still owns it. A stale
// connection closing after a newer one registered leaves the newer in place.
func (r *Registry) Release(id model.AccountID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.ConnID != connID {
		return false
	}
	delete(r.entries, id)
	return true
}

// UpdateScore refreshes the cached score and last-seen time
func (r *Registry) UpdateScore(id model.AccountID, score int64) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok {
		entry.CachedScore = score
		entry.LastSeenAt = now
	}
}

// Touch refreshes last-seen without changing the score
func (r *Registry) Touch(id model.AccountID) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok {
		entry.LastSeenAt = now
	}
}

// Get returns a copy of the entry for id
func (r *Registry) Get(id model.AccountID) (model.PresenceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return model.PresenceEntry{}, false
	}
	return *entry, true
}

// IsOnline reports whether id has a registered connection
func (r *Registry) IsOnline(id model.AccountID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// ListOnline returns a snapshot of all entries ordered by connect time
func (r *Registry) ListOnline() []model.PresenceEntry {
	r.mu.RLock()
	out := make([]model.PresenceEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.PresenceEntry) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Identity.ID, b.Identity.ID)
	})
	return out
}

// Len returns the number of online identities
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
