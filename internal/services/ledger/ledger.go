// Package ledger applies score deltas to accounts through the store's
// atomic increment.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Errors
var (
	ErrImplausibleDelta = errors.New("implausible score delta")
	ErrNothingToApply   = errors.New("event earns nothing")
)

// Config holds configuration for the ledger
type Config struct {
	// MaxDelta is the largest single increment accepted
	MaxDelta int64 `yaml:"max_delta"`
}

// DefaultConfig returns default ledger configuration
func DefaultConfig() Config {
	return Config{
		MaxDelta: 10_000,
	}
}

// Ledger validates and applies score deltas
type Ledger struct {
	storage  storage.Storage
	clock    clock.Clock
	maxDelta int64
	logger   *slog.Logger
}

// New creates a new Ledger
func New(store storage.Storage, clk clock.Clock, cfg Config, logger *slog.Logger) *Ledger {
	if cfg.MaxDelta <= 0 {
		cfg.MaxDelta = DefaultConfig().MaxDelta
	}
	return &Ledger{
		storage:  store,
		clock:    clk,
		maxDelta: cfg.MaxDelta,
		logger:   logger.With(slog.String("component", "ledger")),
	}
}

// ApplyDelta adds delta to the account's score and returns the new total.
// The increment is atomic at the store, so concurrent deltas are never lost.
func (l *Ledger) ApplyDelta(ctx context.Context, id model.AccountID, delta int64) (int64, error) {
	if delta < 0 || delta > l.maxDelta {
		return 0, fmt.Errorf("%w: %d", ErrImplausibleDelta, delta)
	}
	total, err := l.storage.IncrementScore(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	l.logger.Debug("delta applied",
		slog.String("account_id", string(id)),
		slog.Int64("delta", delta),
		slog.Int64("total", total),
	)
	return total, nil
}

// ApplyClick credits one banana-click event. The amount applied is the yield
// of the account's persisted upgrades; the client's claim is only checked
// against it. Returns the new total and the amount applied.
func (l *Ledger) ApplyClick(ctx context.Context, id model.AccountID, event model.ClickEvent) (int64, int64, error) {
	account, err := l.storage.GetAccount(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	if account.Blocked {
		return 0, 0, model.ErrAccountBlocked
	}

	source := event.Source
	if source == "" {
		source = model.SourceClick
	}
	yield := account.Upgrades.Yield(source, l.clock.Now())

	if event.Amount < 0 || event.Amount > yield {
		l.logger.Warn("click claim exceeds yield",
			slog.String("account_id", string(id)),
			slog.String("source", string(source)),
			slog.Int64("claim", event.Amount),
			slog.Int64("yield", yield),
		)
		return 0, 0, fmt.Errorf("%w: claimed %d, earns %d", ErrImplausibleDelta, event.Amount, yield)
	}
	if yield == 0 {
		return 0, 0, ErrNothingToApply
	}

	total, err := l.ApplyDelta(ctx, id, yield)
	if err != nil {
		return 0, 0, err
	}
	return total, yield, nil
}
