package storage

import (
	"context"
	"time"

	"github.com/mcoot/bananaclick/internal/model"
)

// MutateFunc edits an account inside a store transaction. Returning an error
// aborts the update. ID and Seq are owned by the store and are not changed.
type MutateFunc func(account *model.Account) error

// Storage defines the interface for account persistence.
//
// Implementations hand out copies: mutating a returned account has no effect
// until it is written back through UpdateAccount.
type Storage interface {
	// CreateAccount persists a new account and assigns its Seq.
	// Returns model.ErrEmailTaken or model.ErrUsernameTaken on conflict.
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	// ListAccounts returns all accounts in insertion order
	ListAccounts(ctx context.Context) ([]*model.Account, error)
	// UpdateAccount applies fn atomically with respect to other writers
	UpdateAccount(ctx context.Context, id model.AccountID, fn MutateFunc) (*model.Account, error)
	DeleteAccount(ctx context.Context, id model.AccountID) error

	// IncrementScore atomically adds delta to the account's score and returns
	// the new total. Concurrent increments are never lost. Returns
	// model.ErrAccountBlocked without changing the score if the account is blocked.
	IncrementScore(ctx context.Context, id model.AccountID, delta int64) (int64, error)
	// SetActive records whether the account currently has a live connection
	SetActive(ctx context.Context, id model.AccountID, active bool, at time.Time) error
	// ListScores returns the score column of every account in insertion order
	ListScores(ctx context.Context) ([]model.ScoreRecord, error)

	Close() error
}
