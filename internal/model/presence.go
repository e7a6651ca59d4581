package model

import "time"

// Identity is the verified claim carried by a session token. It is fixed for
// the lifetime of a connection and never persisted by the realtime core.
type Identity struct {
	ID       AccountID
	Username string
	Role     Role
}

// IsAdmin reports whether the identity carries the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// PresenceEntry describes one connected identity
type PresenceEntry struct {
	Identity    Identity
	ConnID      string // handle of the connection currently owning the entry
	CachedScore int64
	ConnectedAt time.Time
	LastSeenAt  time.Time
}

// RankingEntry is one row of the leaderboard
type RankingEntry struct {
	ID       AccountID
	Username string
	Score    int64
	Online   bool
}

// RankingSnapshot is a computed, never-persisted view of the top N scores
type RankingSnapshot struct {
	Entries    []RankingEntry
	ComputedAt time.Time
}
