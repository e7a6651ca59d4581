package model

import (
	"strings"
	"time"
)

// AccountID uniquely identifies an account across the system
type AccountID string

// Role controls what a connected identity may do
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePlayer
}

// ParseRole converts a string to a Role, returning ErrInvalidRole if unknown
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Account is the persisted user record. Score only grows through the realtime
// path; shop purchases and admin edits are the only ways it decreases.
type Account struct {
	ID           AccountID
	Username     string
	Email        string // stored lower-cased
	PasswordHash string // bcrypt hash
	Role         Role
	Score        int64
	Blocked      bool
	Active       bool
	Upgrades     Upgrades
	Seq          uint64 // store-assigned insertion order, used to break ranking ties
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActiveAt time.Time
}

// Identity returns the identity claim carried in session tokens for this account
func (a *Account) Identity() Identity {
	return Identity{
		ID:       a.ID,
		Username: a.Username,
		Role:     a.Role,
	}
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// ScoreRecord is the projection of an account read by the ranking aggregator
type ScoreRecord struct {
	AccountID AccountID
	Username  string
	Score     int64
	Blocked   bool
	Active    bool
	Seq       uint64
}

// ScoreRecord projects the account onto its score columns
func (a *Account) ScoreRecord() ScoreRecord {
	return ScoreRecord{
		AccountID: a.ID,
		Username:  a.Username,
		Score:     a.Score,
		Blocked:   a.Blocked,
		Active:    a.Active,
		Seq:       a.Seq,
	}
}

// NormalizeEmail lower-cases and trims an email address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
