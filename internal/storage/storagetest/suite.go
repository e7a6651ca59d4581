// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Suite runs the shared storage tests against the backend built by NewStorage.
// NewStorage is called once per test and must return an empty store.
type Suite struct {
	suite.Suite
	NewStorage func(t *testing.T) storage.Storage

	store storage.Storage
	ctx   context.Context
}

// Run executes the suite against a backend
func Run(t *testing.T, newStorage func(t *testing.T) storage.Storage) {
	suite.Run(t, &Suite{NewStorage: newStorage})
}

func (s *Suite) SetupTest() {
	s.store = s.NewStorage(s.T())
	s.ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// NewAccount builds an unsaved player account with deterministic fields
func NewAccount(id, username string, score int64) *model.Account {
	return &model.Account{
		ID:           model.AccountID(id),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         model.RolePlayer,
		Score:        score,
		Upgrades:     model.DefaultUpgrades(),
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

func (s *Suite) create(id, username string, score int64) *model.Account {
	a := NewAccount(id, username, score)
	s.Require().NoError(s.store.CreateAccount(s.ctx, a))
	return a
}

// Create / get

func (s *Suite) TestCreateAndGetAccount() {
	created := s.create("acc-1", "alice", 10)
	s.NotZero(created.Seq)

	got, err := s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
	s.Equal("alice@example.com", got.Email)
	s.Equal(model.RolePlayer, got.Role)
	s.Equal(int64(10), got.Score)
	s.Equal(created.Seq, got.Seq)
	s.Equal(1, got.Upgrades.ClickLevel)
	s.Equal(1, got.Upgrades.MultiplierLevel)
	s.True(baseTime.Equal(got.CreatedAt))
}

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.store.GetAccount(s.ctx, "missing")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestGetAccountByEmailIsCaseInsensitive() {
	s.create("acc-1", "alice", 0)

	got, err := s.store.GetAccountByEmail(s.ctx, "  ALICE@Example.com")
	s.Require().NoError(err)
	s.Equal(model.AccountID("acc-1"), got.ID)

	_, err = s.store.GetAccountByEmail(s.ctx, "bob@example.com")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestCreateRejectsDuplicateEmail() {
	s.create("acc-1", "alice", 0)

	dup := NewAccount("acc-2", "alice2", 0)
	dup.Email = "Alice@example.com"
	s.ErrorIs(s.store.CreateAccount(s.ctx, dup), model.ErrEmailTaken)
}

func (s *Suite) TestCreateRejectsDuplicateUsername() {
	s.create("acc-1", "alice", 0)

	dup := NewAccount("acc-2", "alice", 0)
	dup.Email = "other@example.com"
	s.ErrorIs(s.store.CreateAccount(s.ctx, dup), model.ErrUsernameTaken)
}

func (s *Suite) TestListAccountsInInsertionOrder() {
	s.create("c", "carol", 0)
	s.create("a", "alice", 0)
	s.create("b", "bob", 0)

	accounts, err := s.store.ListAccounts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(accounts, 3)
	s.Equal(model.AccountID("c"), accounts[0].ID)
	s.Equal(model.AccountID("a"), accounts[1].ID)
	s.Equal(model.AccountID("b"), accounts[2].ID)
	s.Less(accounts[0].Seq, accounts[1].Seq)
	s.Less(accounts[1].Seq, accounts[2].Seq)
}

// Update / delete

func (s *Suite) TestUpdateAccount() {
	s.create("acc-1", "alice", 100)

	updated, err := s.store.UpdateAccount(s.ctx, "acc-1", func(a *model.Account) error {
		a.Username = "alicia"
		a.Email = "ALICIA@example.com"
		a.Role = model.RoleAdmin
		a.Blocked = true
		a.Upgrades.FactoryLevel = 3
		a.Score -= 40
		return nil
	})
	s.Require().NoError(err)
	s.Equal("alicia", updated.Username)
	s.Equal("alicia@example.com", updated.Email)

	got, err := s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.Equal("alicia", got.Username)
	s.Equal(model.RoleAdmin, got.Role)
	s.True(got.Blocked)
	s.Equal(3, got.Upgrades.FactoryLevel)
	s.Equal(int64(60), got.Score)

	byEmail, err := s.store.GetAccountByEmail(s.ctx, "alicia@example.com")
	s.Require().NoError(err)
	s.Equal(model.AccountID("acc-1"), byEmail.ID)

	_, err = s.store.GetAccountByEmail(s.ctx, "alice@example.com")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestUpdateAccountKeepsStoreOwnedFields() {
	created := s.create("acc-1", "alice", 0)

	updated, err := s.store.UpdateAccount(s.ctx, "acc-1", func(a *model.Account) error {
		a.ID = "other"
		a.Seq = 999
		return nil
	})
	s.Require().NoError(err)
	s.Equal(model.AccountID("acc-1"), updated.ID)
	s.Equal(created.Seq, updated.Seq)
}

func (s *Suite) TestUpdateAccountAbortsOnError() {
	s.create("acc-1", "alice", 5)
	boom := errors.New("boom")

	_, err := s.store.UpdateAccount(s.ctx, "acc-1", func(a *model.Account) error {
		a.Score = 500
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.Equal(int64(5), got.Score)
}

func (s *Suite) TestUpdateAccountRejectsTakenEmail() {
	s.create("acc-1", "alice", 0)
	s.create("acc-2", "bob", 0)

	_, err := s.store.UpdateAccount(s.ctx, "acc-2", func(a *model.Account) error {
		a.Email = "alice@example.com"
		return nil
	})
	s.ErrorIs(err, model.ErrEmailTaken)
}

func (s *Suite) TestUpdateAccountNotFound() {
	_, err := s.store.UpdateAccount(s.ctx, "missing", func(a *model.Account) error { return nil })
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestDeleteAccount() {
	s.create("acc-1", "alice", 0)

	s.Require().NoError(s.store.DeleteAccount(s.ctx, "acc-1"))

	_, err := s.store.GetAccount(s.ctx, "acc-1")
	s.ErrorIs(err, model.ErrAccountNotFound)
	_, err = s.store.GetAccountByEmail(s.ctx, "alice@example.com")
	s.ErrorIs(err, model.ErrAccountNotFound)

	// the email is free again
	s.create("acc-2", "alice", 0)
}

func (s *Suite) TestDeleteAccountNotFound() {
	s.ErrorIs(s.store.DeleteAccount(s.ctx, "missing"), model.ErrAccountNotFound)
}

// Scores

func (s *Suite) TestIncrementScore() {
	s.create("acc-1", "alice", 10)

	total, err := s.store.IncrementScore(s.ctx, "acc-1", 5)
	s.Require().NoError(err)
	s.Equal(int64(15), total)

	got, err := s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.Equal(int64(15), got.Score)
}

func (s *Suite) TestIncrementScoreBlocked() {
	a := NewAccount("acc-1", "alice", 10)
	a.Blocked = true
	s.Require().NoError(s.store.CreateAccount(s.ctx, a))

	_, err := s.store.IncrementScore(s.ctx, "acc-1", 5)
	s.ErrorIs(err, model.ErrAccountBlocked)

	got, err := s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.Equal(int64(10), got.Score)
}

func (s *Suite) TestIncrementScoreNotFound() {
	_, err := s.store.IncrementScore(s.ctx, "missing", 1)
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestConcurrentIncrementsAreNotLost() {
	s.create("acc-1", "alice", 7)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.IncrementScore(s.ctx, "acc-1", 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got, err := s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.Equal(int64(7+n), got.Score)
}

func (s *Suite) TestSetActive() {
	s.create("acc-1", "alice", 0)
	at := baseTime.Add(time.Hour)

	s.Require().NoError(s.store.SetActive(s.ctx, "acc-1", true, at))
	got, err := s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.True(got.Active)
	s.True(at.Equal(got.LastActiveAt))

	s.Require().NoError(s.store.SetActive(s.ctx, "acc-1", false, at))
	got, err = s.store.GetAccount(s.ctx, "acc-1")
	s.Require().NoError(err)
	s.False(got.Active)

	s.ErrorIs(s.store.SetActive(s.ctx, "missing", true, at), model.ErrAccountNotFound)
}

func (s *Suite) TestListScores() {
	for i := 0; i < 5; i++ {
		s.create(fmt.Sprintf("acc-%d", i), fmt.Sprintf("user%d", i), int64(i*10))
	}
	_, err := s.store.IncrementScore(s.ctx, "acc-2", 3)
	s.Require().NoError(err)

	scores, err := s.store.ListScores(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(scores, 5)
	for i, rec := range scores {
		s.Equal(model.AccountID(fmt.Sprintf("acc-%d", i)), rec.AccountID)
	}
	s.Equal(int64(23), scores[2].Score)
	s.Equal("user2", scores[2].Username)
}
