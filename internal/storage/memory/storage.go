package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts      map[model.AccountID]*model.Account
	emailIndex    map[string]model.AccountID
	usernameIndex map[string]model.AccountID
	nextSeq       uint64
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:      make(map[model.AccountID]*model.Account),
		emailIndex:    make(map[string]model.AccountID),
		usernameIndex: make(map[string]model.AccountID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := model.NormalizeEmail(account.Email)
	if _, ok := s.emailIndex[email]; ok {
		return model.ErrEmailTaken
	}
	if _, ok := s.usernameIndex[account.Username]; ok {
		return model.ErrUsernameTaken
	}

	s.nextSeq++
	account.Seq = s.nextSeq
	account.Email = email

	s.accounts[account.ID] = account.Clone()
	s.emailIndex[email] = account.ID
	s.usernameIndex[account.Username] = account.ID
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[model.NormalizeEmail(email)]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *Storage) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(a, b *model.Account) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

func (s *Storage) UpdateAccount(ctx context.Context, id model.AccountID, fn storage.MutateFunc) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	next, err := storage.Mutate(current, fn)
	if err != nil {
		return nil, err
	}

	if next.Email != current.Email {
		if _, taken := s.emailIndex[next.Email]; taken {
			return nil, model.ErrEmailTaken
		}
	}
	if next.Username != current.Username {
		if _, taken := s.usernameIndex[next.Username]; taken {
			return nil, model.ErrUsernameTaken
		}
	}

	delete(s.emailIndex, current.Email)
	delete(s.usernameIndex, current.Username)
	s.emailIndex[next.Email] = id
	s.usernameIndex[next.Username] = id
	s.accounts[id] = next
	return next.Clone(), nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	delete(s.emailIndex, account.Email)
	delete(s.usernameIndex, account.Username)
	delete(s.accounts, id)
	return nil
}

func (s *Storage) IncrementScore(ctx context.Context, id model.AccountID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return 0, model.ErrAccountNotFound
	}
	if account.Blocked {
		return 0, model.ErrAccountBlocked
	}
	account.Score += delta
	return account.Score, nil
}

func (s *Storage) SetActive(ctx context.Context, id model.AccountID, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	account.Active = active
	account.LastActiveAt = at
	return nil
}

func (s *Storage) ListScores(ctx context.Context) ([]model.ScoreRecord, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ScoreRecord, len(accounts))
	for i, a := range accounts {
		out[i] = a.ScoreRecord()
	}
	return out, nil
}

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}
