// Package shop sells upgrades in exchange for bananas.
package shop

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Notifier pushes purchase results to connected clients
type Notifier interface {
	Refresh(ctx context.Context)
	NotifyScore(id model.AccountID, total int64) bool
}

// Offer is the next level of one upgrade and what it costs
type Offer struct {
	Kind       model.UpgradeKind
	Level      int
	Price      int64
	Affordable bool
}

// Catalog is an account's balance and the upgrades it can buy
type Catalog struct {
	BananaCount      int64
	Offers           []Offer
	MultiplierActive bool
}

// Purchase is the result of a successful Buy
type Purchase struct {
	Kind    model.UpgradeKind
	Price   int64
	Account *model.Account
}

// Service prices and applies upgrades
type Service struct {
	storage  storage.Storage
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a new shop Service
func New(store storage.Storage, notifier Notifier, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage:  store,
		notifier: notifier,
		clock:    clk,
		logger:   logger.With(slog.String("component", "shop")),
	}
}

// Catalog lists every upgrade with the price of its next level
func (s *Service) Catalog(ctx context.Context, id model.AccountID) (*Catalog, error) {
	account, err := s.storage.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return catalogFor(account, s.clock.Now()), nil
}

// Buy charges the account for the next level of kind and applies it.
// The balance check and the charge happen in one store update.
func (s *Service) Buy(ctx context.Context, id model.AccountID, kind model.UpgradeKind) (*Purchase, error) {
	if _, err := model.ParseUpgradeKind(string(kind)); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var price int64
	updated, err := s.storage.UpdateAccount(ctx, id, func(a *model.Account) error {
		if a.Blocked {
			return model.ErrAccountBlocked
		}
		price = a.Upgrades.Price(kind)
		if a.Score < price {
			return model.ErrInsufficientFunds
		}
		a.Score -= price
		a.Upgrades = a.Upgrades.Apply(kind, now)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("upgrade purchased",
		slog.String("account_id", string(id)),
		slog.String("upgrade", string(kind)),
		slog.Int("level", updated.Upgrades.Level(kind)),
		slog.Int64("price", price))

	s.notifier.NotifyScore(id, updated.Score)
	s.notifier.Refresh(ctx)
	return &Purchase{Kind: kind, Price: price, Account: updated}, nil
}

func catalogFor(a *model.Account, now time.Time) *Catalog {
	c := &Catalog{
		BananaCount:      a.Score,
		MultiplierActive: a.Upgrades.MultiplierActive(now),
	}
	for _, kind := range model.UpgradeKinds {
		price := a.Upgrades.Price(kind)
		c.Offers = append(c.Offers, Offer{
			Kind:       kind,
			Level:      a.Upgrades.Level(kind),
			Price:      price,
			Affordable: a.Score >= price,
		})
	}
	return c
}
