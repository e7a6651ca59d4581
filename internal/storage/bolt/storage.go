package bolt

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

var (
	accountsBucket      = []byte("accounts")
	emailIndexBucket    = []byte("idx_email")
	usernameIndexBucket = []byte("idx_username")
)

// Config holds bbolt settings
type Config struct {
	// Path is the database file, created if missing
	Path string `yaml:"path"`
	// OpenTimeout bounds the wait for the file lock held by another process
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// DefaultConfig returns sensible defaults for bbolt
func DefaultConfig() Config {
	return Config{
		Path:        "bananaclick.db",
		OpenTimeout: time.Second,
	}
}

// Storage is a single-file bbolt implementation of the storage interface.
// Every write runs in one bolt transaction, and bolt serializes writers.
type Storage struct {
	db *bolt.DB
}

// New opens (or creates) the database file and its buckets
func New(cfg Config) (*Storage, error) {
	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %s: %w", cfg.Path, err)
	}
	s, err := NewWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already open database
func NewWithDB(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{accountsBucket, emailIndexBucket, usernameIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

// Close closes the database file
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	account.Email = model.NormalizeEmail(account.Email)

	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		emails := tx.Bucket(emailIndexBucket)
		usernames := tx.Bucket(usernameIndexBucket)

		if emails.Get([]byte(account.Email)) != nil {
			return model.ErrEmailTaken
		}
		if usernames.Get([]byte(account.Username)) != nil {
			return model.ErrUsernameTaken
		}

		seq, err := accounts.NextSequence()
		if err != nil {
			return err
		}
		account.Seq = seq

		if err := putAccount(accounts, account); err != nil {
			return err
		}
		if err := emails.Put([]byte(account.Email), []byte(account.ID)); err != nil {
			return err
		}
		return usernames.Put([]byte(account.Username), []byte(account.ID))
	})
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	var account *model.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		account, err = getAccount(tx.Bucket(accountsBucket), id)
		return err
	})
	return account, err
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account *model.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(emailIndexBucket).Get([]byte(model.NormalizeEmail(email)))
		if id == nil {
			return model.ErrAccountNotFound
		}
		var err error
		account, err = getAccount(tx.Bucket(accountsBucket), model.AccountID(id))
		return err
	})
	return account, err
}

func (s *Storage) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	var accounts []*model.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(_, v []byte) error {
			var a model.Account
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			accounts = append(accounts, &a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(accounts, func(a, b *model.Account) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return accounts, nil
}

func (s *Storage) UpdateAccount(ctx context.Context, id model.AccountID, fn storage.MutateFunc) (*model.Account, error) {
	var result *model.Account
	err := s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		emails := tx.Bucket(emailIndexBucket)
		usernames := tx.Bucket(usernameIndexBucket)

		current, err := getAccount(accounts, id)
		if err != nil {
			return err
		}
		next, err := storage.Mutate(current, fn)
		if err != nil {
			return err
		}

		if next.Email != current.Email {
			if emails.Get([]byte(next.Email)) != nil {
				return model.ErrEmailTaken
			}
			if err := emails.Delete([]byte(current.Email)); err != nil {
				return err
			}
			if err := emails.Put([]byte(next.Email), []byte(id)); err != nil {
				return err
			}
		}
		if next.Username != current.Username {
			if usernames.Get([]byte(next.Username)) != nil {
				return model.ErrUsernameTaken
			}
			if err := usernames.Delete([]byte(current.Username)); err != nil {
				return err
			}
			if err := usernames.Put([]byte(next.Username), []byte(id)); err != nil {
				return err
			}
		}

		result = next
		return putAccount(accounts, next)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.AccountID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		account, err := getAccount(accounts, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(emailIndexBucket).Delete([]byte(account.Email)); err != nil {
			return err
		}
		if err := tx.Bucket(usernameIndexBucket).Delete([]byte(account.Username)); err != nil {
			return err
		}
		return accounts.Delete([]byte(id))
	})
}

func (s *Storage) IncrementScore(ctx context.Context, id model.AccountID, delta int64) (int64, error) {
	var total int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		account, err := getAccount(accounts, id)
		if err != nil {
			return err
		}
		if account.Blocked {
			return model.ErrAccountBlocked
		}
		account.Score += delta
		total = account.Score
		return putAccount(accounts, account)
	})
	return total, err
}

func (s *Storage) SetActive(ctx context.Context, id model.AccountID, active bool, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		account, err := getAccount(accounts, id)
		if err != nil {
			return err
		}
		account.Active = active
		account.LastActiveAt = at
		return putAccount(accounts, account)
	})
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

func getAccount(b *bolt.Bucket, id model.AccountID) (*model.Account, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, model.ErrAccountNotFound
	}
	var a model.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func putAccount(b *bolt.Bucket, a *model.Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return b.Put([]byte(a.ID), data)
}
