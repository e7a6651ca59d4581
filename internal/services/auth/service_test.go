package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/bananaclick/internal/dependencies/mocks"
	"github.com/mcoot/bananaclick/internal/dependencies/random"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/token"
	"github.com/mcoot/bananaclick/internal/storage/memory"
	"github.com/mcoot/bananaclick/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	codec   *token.Codec
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	key, err := token.GenerateKey()
	s.Require().NoError(err)
	s.codec, err = token.NewCodec(key, 24*time.Hour, s.clock, random.New())
	s.Require().NoError(err)
	s.service = New(s.storage, s.codec, s.clock, Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) register(username string) *Session {
	sess, err := s.service.Register(s.ctx, username, username+"@example.com", "password123")
	s.Require().NoError(err)
	return sess
}

func (s *ServiceSuite) TestRegisterCreatesPlayer() {
	sess := s.register("alice")

	s.NotEmpty(sess.Token)
	s.Equal("alice", sess.Account.Username)
	s.Equal(model.RolePlayer, sess.Account.Role)
	s.Equal(int64(0), sess.Account.Score)
	s.Equal(model.DefaultUpgrades(), sess.Account.Upgrades)
	s.Equal(s.clock.Now().Add(24*time.Hour).Unix(), sess.ExpiresAt.Unix())

	stored, err := s.storage.GetAccountByEmail(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.NotEqual("password123", stored.PasswordHash)

	identity, err := s.codec.Authenticate(sess.Token)
	s.Require().NoError(err)
	s.Equal(stored.ID, identity.ID)
}

func (s *ServiceSuite) TestRegisterRejectsDuplicates() {
	s.register("alice")

	_, err := s.service.Register(s.ctx, "alice2", "ALICE@example.com", "password123")
	s.ErrorIs(err, model.ErrEmailTaken)

	_, err = s.service.Register(s.ctx, "alice", "other@example.com", "password123")
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *ServiceSuite) TestRegisterValidatesInput() {
	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "al", "al@example.com", "password123"},
		{"bad email", "alice", "not-an-email", "password123"},
		{"short password", "alice", "alice@example.com", "pw"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Register(s.ctx, tc.username, tc.email, tc.password)
			s.ErrorIs(err, ErrInvalidInput)
		})
	}
}

func (s *ServiceSuite) TestCreateAccountWithRole() {
	account, err := s.service.CreateAccount(s.ctx, NewAccountInput{
		Username: "boss",
		Email:    "boss@example.com",
		Password: "password123",
		Role:     model.RoleAdmin,
	})
	s.Require().NoError(err)
	s.Equal(model.RoleAdmin, account.Role)

	_, err = s.service.CreateAccount(s.ctx, NewAccountInput{
		Username: "weird",
		Email:    "weird@example.com",
		Password: "password123",
		Role:     "superuser",
	})
	s.ErrorIs(err, model.ErrInvalidRole)
}

func (s *ServiceSuite) TestLoginMarksActive() {
	s.register("alice")
	s.clock.Advance(time.Minute)

	sess, err := s.service.Login(s.ctx, "Alice@Example.com", "password123")
	s.Require().NoError(err)
	s.NotEmpty(sess.Token)

	stored, err := s.storage.GetAccount(s.ctx, sess.Account.ID)
	s.Require().NoError(err)
	s.True(stored.Active)
	s.True(s.clock.Now().Equal(stored.LastActiveAt))
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	s.register("alice")

	_, err := s.service.Login(s.ctx, "alice@example.com", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginFailsForUnknownEmail() {
	_, err := s.service.Login(s.ctx, "nobody@example.com", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginRefusesBlockedAccount() {
	sess := s.register("alice")
	_, err := s.storage.UpdateAccount(s.ctx, sess.Account.ID, func(a *model.Account) error {
		a.Blocked = true
		return nil
	})
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, "alice@example.com", "password123")
	s.ErrorIs(err, model.ErrAccountBlocked)

	// a wrong password does not reveal the block
	_, err = s.service.Login(s.ctx, "alice@example.com", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLogoutRevokesToken() {
	s.register("alice")
	sess, err := s.service.Login(s.ctx, "alice@example.com", "password123")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(s.ctx, sess.Account.ID, sess.Token))

	_, err = s.service.Authenticate(s.ctx, sess.Token)
	s.ErrorIs(err, token.ErrInvalidToken)

	stored, err := s.storage.GetAccount(s.ctx, sess.Account.ID)
	s.Require().NoError(err)
	s.False(stored.Active)
}

func (s *ServiceSuite) TestAuthenticate() {
	sess := s.register("alice")

	account, err := s.service.Authenticate(s.ctx, sess.Token)
	s.Require().NoError(err)
	s.Equal(sess.Account.ID, account.ID)

	_, err = s.service.Authenticate(s.ctx, "")
	s.ErrorIs(err, token.ErrMissingToken)
}

func (s *ServiceSuite) TestAuthenticateExpired() {
	sess := s.register("alice")
	s.clock.Advance(25 * time.Hour)

	_, err := s.service.Authenticate(s.ctx, sess.Token)
	s.ErrorIs(err, token.ErrTokenExpired)
}

func (s *ServiceSuite) TestAuthenticateDeletedOrBlocked() {
	alice := s.register("alice")
	bob := s.register("bob")

	s.Require().NoError(s.storage.DeleteAccount(s.ctx, alice.Account.ID))
	_, err := s.service.Authenticate(s.ctx, alice.Token)
	s.ErrorIs(err, model.ErrAccountNotFound)

	_, err = s.storage.UpdateAccount(s.ctx, bob.Account.ID, func(a *model.Account) error {
		a.Blocked = true
		return nil
	})
	s.Require().NoError(err)
	_, err = s.service.Authenticate(s.ctx, bob.Token)
	s.ErrorIs(err, model.ErrAccountBlocked)
}

func (s *ServiceSuite) TestEnsureAdmin() {
	cfg := AdminConfig{Username: "root", Email: "root@example.com", Password: "rootpassword"}

	created, err := s.service.EnsureAdmin(s.ctx, cfg)
	s.Require().NoError(err)
	s.True(created)

	sess, err := s.service.Login(s.ctx, "root@example.com", "rootpassword")
	s.Require().NoError(err)
	s.Equal(model.RoleAdmin, sess.Account.Role)

	created, err = s.service.EnsureAdmin(s.ctx, cfg)
	s.Require().NoError(err)
	s.False(created)
}

func (s *ServiceSuite) TestEnsureAdminDisabled() {
	created, err := s.service.EnsureAdmin(s.ctx, AdminConfig{})
	s.Require().NoError(err)
	s.False(created)

	accounts, err := s.storage.ListAccounts(s.ctx)
	s.Require().NoError(err)
	s.Empty(accounts)
}
