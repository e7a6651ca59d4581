// Package accounts implements the admin account management operations.
package accounts

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/auth"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Notifier pushes account changes to connected clients
type Notifier interface {
	Refresh(ctx context.Context)
	NotifyAccountStatus(id model.AccountID, blocked bool) bool
}

// UpdateInput holds the fields an admin may change. Nil fields are left alone.
type UpdateInput struct {
	Username *string
	Email    *string
	Role     *model.Role
	Blocked  *bool
}

// Service manages accounts on behalf of admins
type Service struct {
	storage  storage.Storage
	auth     *auth.Service
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a new accounts Service
func New(store storage.Storage, authService *auth.Service, notifier Notifier, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage:  store,
		auth:     authService,
		notifier: notifier,
		clock:    clk,
		logger:   logger.With(slog.String("component", "accounts")),
	}
}

// List returns every account in creation order
func (s *Service) List(ctx context.Context) ([]*model.Account, error) {
	return s.storage.ListAccounts(ctx)
}

// ListActive returns accounts currently marked active
func (s *Service) ListActive(ctx context.Context) ([]*model.Account, error) {
	all, err := s.storage.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*model.Account, 0, len(all))
	for _, a := range all {
		if a.Active {
			active = append(active, a)
		}
	}
	return active, nil
}

// Get returns a single account
func (s *Service) Get(ctx context.Context, id model.AccountID) (*model.Account, error) {
	return s.storage.GetAccount(ctx, id)
}

// Create adds an account with the given role
func (s *Service) Create(ctx context.Context, in auth.NewAccountInput) (*model.Account, error) {
	account, err := s.auth.CreateAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	s.notifier.Refresh(ctx)
	return account, nil
}

// Update applies the non-nil fields of in
func (s *Service) Update(ctx context.Context, id model.AccountID, in UpdateInput) (*model.Account, error) {
	if in.Username != nil {
		if err := auth.ValidateUsername(*in.Username); err != nil {
			return nil, err
		}
	}
	if in.Email != nil {
		if err := auth.ValidateEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.Role != nil && !in.Role.Valid() {
		return nil, model.ErrInvalidRole
	}

	var wasBlocked bool
	updated, err := s.storage.UpdateAccount(ctx, id, func(a *model.Account) error {
		wasBlocked = a.Blocked
		if in.Username != nil {
			a.Username = strings.TrimSpace(*in.Username)
		}
		if in.Email != nil {
			a.Email = model.NormalizeEmail(*in.Email)
		}
		if in.Role != nil {
			a.Role = *in.Role
		}
		if in.Blocked != nil {
			a.Blocked = *in.Blocked
		}
		a.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account updated", slog.String("account_id", string(id)))
	if updated.Blocked != wasBlocked {
		s.notifier.NotifyAccountStatus(id, updated.Blocked)
	}
	s.notifier.Refresh(ctx)
	return updated, nil
}

// SetBlocked blocks or unblocks an account
func (s *Service) SetBlocked(ctx context.Context, id model.AccountID, blocked bool) (*model.Account, error) {
	return s.Update(ctx, id, UpdateInput{Blocked: &blocked})
}

// Delete removes an account
func (s *Service) Delete(ctx context.Context, id model.AccountID) error {
	if err := s.storage.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", slog.String("account_id", string(id)))
	s.notifier.Refresh(ctx)
	return nil
}
