package storage

import "github.com/mcoot/bananaclick/internal/model"

// Mutate runs fn on a copy of current and restores the store-owned fields.
// Backends call it from inside their own transaction.
func Mutate(current *model.Account, fn MutateFunc) (*model.Account, error) {
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Seq = current.Seq
	next.Email = model.NormalizeEmail(next.Email)
	if next.Score < 0 {
		next.Score = 0
	}
	return next, nil
}
