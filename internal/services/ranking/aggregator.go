// Package ranking computes the leaderboard from stored scores.
package ranking

import (
	"cmp"
	"context"
	"slices"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

// DefaultTopN is the leaderboard length broadcast to clients
const DefaultTopN = 100

// OnlineChecker reports whether an account currently holds a connection
type OnlineChecker interface {
	IsOnline(id model.AccountID) bool
}

// Aggregator builds ranking snapshots
type Aggregator struct {
	storage storage.Storage
	online  OnlineChecker
	clock   clock.Clock
}

// New creates a new Aggregator
func New(store storage.Storage, online OnlineChecker, clk clock.Clock) *Aggregator {
	return &Aggregator{
		storage: store,
		online:  online,
		clock:   clk,
	}
}

// ComputeTop returns at most n accounts by score descending. Equal scores
// keep store insertion order. n <= 0 means DefaultTopN.
func (a *Aggregator) ComputeTop(ctx context.Context, n int) (model.RankingSnapshot, error) {
	if n <= 0 {
		n = DefaultTopN
	}

	records, err := a.storage.ListScores(ctx)
	if err != nil {
		return model.RankingSnapshot{}, err
	}

	// ListScores is already in insertion order; sort by Seq anyway so the
	// result does not depend on the backend getting that right.
	slices.SortStableFunc(records, func(x, y model.ScoreRecord) int {
		return cmp.Compare(x.Seq, y.Seq)
	})
	slices.SortStableFunc(records, func(x, y model.ScoreRecord) int {
		return cmp.Compare(y.Score, x.Score)
	})

	if len(records) > n {
		records = records[:n]
	}

	entries := make([]model.RankingEntry, len(records))
	for i, r := range records {
		entries[i] = model.RankingEntry{
			ID:       r.AccountID,
			Username: r.Username,
			Score:    r.Score,
			Online:   a.online.IsOnline(r.AccountID),
		}
	}
	return model.RankingSnapshot{
		Entries:    entries,
		ComputedAt: a.clock.Now(),
	}, nil
}
