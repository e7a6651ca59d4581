package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/token"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
	minPasswordLength = 6
)

// Session is the result of a successful register or login
type Session struct {
	Token     string
	Account   *model.Account
	ExpiresAt time.Time
}

// Config holds configuration for the auth service
type Config struct {
	// BcryptCost is the password hashing cost
	BcryptCost int `yaml:"bcrypt_cost"`
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// AdminConfig describes the bootstrap admin account. Empty means none.
type AdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Enabled reports whether a bootstrap admin is configured
func (c AdminConfig) Enabled() bool {
	return c.Email != "" && c.Password != ""
}

// Service handles credentials: account creation, login, logout and
// resolving bearer tokens to accounts
type Service struct {
	storage storage.Storage
	codec   *token.Codec
	clock   clock.Clock
	cost    int
	logger  *slog.Logger
}

// New creates a new auth Service
func New(store storage.Storage, codec *token.Codec, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	return &Service{
		storage: store,
		codec:   codec,
		clock:   clk,
		cost:    cfg.BcryptCost,
		logger:  logger.With(slog.String("component", "auth")),
	}
}

// NewAccountInput is what a caller supplies to create an account
type NewAccountInput struct {
	Username string
	Email    string
	Password string
	Role     model.Role
}

// CreateAccount validates input, hashes the password and stores a new
// account with default upgrades. An empty role means player.
func (s *Service) CreateAccount(ctx context.Context, in NewAccountInput) (*model.Account, error) {
	username := strings.TrimSpace(in.Username)
	email := model.NormalizeEmail(in.Email)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	role := in.Role
	if role == "" {
		role = model.RolePlayer
	}
	if !role.Valid() {
		return nil, model.ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account := &model.Account{
		ID:           model.AccountID(uuid.NewString()),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Upgrades:     model.DefaultUpgrades(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		slog.String("account_id", string(account.ID)),
		slog.String("username", account.Username),
		slog.String("role", string(account.Role)))
	return account, nil
}

// Register creates a player account and signs it in. Self-registration
// never grants the admin role.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	account, err := s.CreateAccount(ctx, NewAccountInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     model.RolePlayer,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(account)
}

// Login checks the password and marks the account active
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.storage.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if account.Blocked {
		return nil, model.ErrAccountBlocked
	}

	now := s.clock.Now()
	if err := s.storage.SetActive(ctx, account.ID, true, now); err != nil {
		return nil, err
	}
	account.Active = true
	account.LastActiveAt = now

	s.logger.Info("login", slog.String("account_id", string(account.ID)))
	return s.issue(account)
}

// Logout revokes the token and marks the account inactive
func (s *Service) Logout(ctx context.Context, id model.AccountID, bearer string) error {
	s.codec.Revoke(bearer)
	if err := s.storage.SetActive(ctx, id, false, s.clock.Now()); err != nil {
		return err
	}
	s.logger.Info("logout", slog.String("account_id", string(id)))
	return nil
}

// Authenticate resolves a bearer token to its current account. Unlike the
// realtime handshake this consults the store, so deleted or blocked accounts
// are refused.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*model.Account, error) {
	identity, err := s.codec.Authenticate(bearer)
	if err != nil {
		return nil, err
	}
	account, err := s.storage.GetAccount(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if account.Blocked {
		return nil, model.ErrAccountBlocked
	}
	return account, nil
}

// EnsureAdmin creates the configured bootstrap admin if no account holds
// its email yet. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, cfg AdminConfig) (bool, error) {
	if !cfg.Enabled() {
		return false, nil
	}
	existing, err := s.storage.GetAccountByEmail(ctx, cfg.Email)
	if err == nil {
		if existing.Role != model.RoleAdmin {
			s.logger.Warn("bootstrap admin email belongs to a non-admin account",
				slog.String("account_id", string(existing.ID)))
		}
		return false, nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return false, err
	}

	username := cfg.Username
	if username == "" {
		username = "admin"
	}
	if _, err := s.CreateAccount(ctx, NewAccountInput{
		Username: username,
		Email:    cfg.Email,
		Password: cfg.Password,
		Role:     model.RoleAdmin,
	}); err != nil {
		return false, fmt.Errorf("creating bootstrap admin: %w", err)
	}
	return true, nil
}

// ValidateUsername checks a username before it is stored
func ValidateUsername(username string) error {
	return validateUsername(strings.TrimSpace(username))
}

// ValidateEmail checks an email address before it is stored
func ValidateEmail(email string) error {
	return validateEmail(model.NormalizeEmail(email))
}

func (s *Service) issue(account *model.Account) (*Session, error) {
	tok, claims, err := s.codec.Issue(account.Identity())
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     tok,
		Account:   account,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

func validateUsername(username string) error {
	if n := len(username); n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidInput, minUsernameLength, maxUsernameLength)
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return nil
}
