package redis

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

// ErrTxConflict is returned when UpdateAccount keeps losing optimistic races
var ErrTxConflict = errors.New("redis: too much contention updating account")

// Error replies raised by the Lua scripts
const (
	replyNotFound      = "NOT_FOUND"
	replyBlocked       = "BLOCKED"
	replyEmailTaken    = "EMAIL_TAKEN"
	replyUsernameTaken = "USERNAME_TAKEN"
)

// createScript claims both indexes, assigns the next seq and writes the hash
// in one step. KEYS: account, email idx, username idx, account set, seq.
// ARGV: id, then field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return redis.error_reply('EMAIL_TAKEN')
end
if redis.call('EXISTS', KEYS[3]) == 1 then
	return redis.error_reply('USERNAME_TAKEN')
end
local seq = redis.call('INCR', KEYS[5])
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SET', KEYS[3], ARGV[1])
redis.call('SADD', KEYS[4], ARGV[1])
redis.call('HSET', KEYS[1], 'seq', seq, unpack(ARGV, 2))
return seq
`)

// incrementScript refuses blocked or missing accounts, otherwise HINCRBY.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.error_reply('NOT_FOUND')
end
if redis.call('HGET', KEYS[1], 'blocked') == '1' then
	return redis.error_reply('BLOCKED')
end
return redis.call('HINCRBY', KEYS[1], 'score', ARGV[1])
`)

var setActiveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.error_reply('NOT_FOUND')
end
redis.call('HSET', KEYS[1], 'active', ARGV[1], 'last_active_at', ARGV[2])
return 1
`)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	account.Email = model.NormalizeEmail(account.Email)

	keys := []string{
		accountKey(account.ID),
		emailIndexKey(account.Email),
		usernameIndexKey(account.Username),
		accountSetKey(),
		seqKey(),
	}
	args := append([]any{string(account.ID)}, flatten(encodeAccount(account))...)

	seq, err := createScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return mapScriptError(err)
	}
	account.Seq = uint64(seq)
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	return s.load(ctx, s.client, id)
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	// Look up account ID from email index
	id, err := s.client.Get(ctx, emailIndexKey(model.NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, model.AccountID(id))
}

func (s *Storage) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	ids, err := s.client.SMembers(ctx, accountSetKey()).Result()
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, accountKey(model.AccountID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	accounts := make([]*model.Account, 0, len(ids))
	for _, cmd := range cmds {
		a, err := decodeAccount(cmd.Val())
		if errors.Is(err, model.ErrAccountNotFound) {
			// deleted between SMEMBERS and HGETALL
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	slices.SortFunc(accounts, func(a, b *model.Account) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return accounts, nil
}

func (s *Storage) UpdateAccount(ctx context.Context, id model.AccountID, fn storage.MutateFunc) (*model.Account, error) {
	key := accountKey(id)
	var result *model.Account

	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := storage.Mutate(current, fn)
		if err != nil {
			return err
		}

		emailChanged := next.Email != current.Email
		usernameChanged := next.Username != current.Username
		if emailChanged {
			if err := s.claimable(ctx, tx, emailIndexKey(next.Email), model.ErrEmailTaken); err != nil {
				return err
			}
		}
		if usernameChanged {
			if err := s.claimable(ctx, tx, usernameIndexKey(next.Username), model.ErrUsernameTaken); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeAccount(next))
			if emailChanged {
				pipe.Del(ctx, emailIndexKey(current.Email))
				pipe.Set(ctx, emailIndexKey(next.Email), string(id), 0)
			}
			if usernameChanged {
				pipe.Del(ctx, usernameIndexKey(current.Username))
				pipe.Set(ctx, usernameIndexKey(next.Username), string(id), 0)
			}
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, ErrTxConflict
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.AccountID) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	// Use pipeline for atomic delete + index cleanup
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, accountKey(id))
		pipe.Del(ctx, emailIndexKey(account.Email))
		pipe.Del(ctx, usernameIndexKey(account.Username))
		pipe.SRem(ctx, accountSetKey(), string(id))
		return nil
	})
	return err
}

func (s *Storage) IncrementScore(ctx context.Context, id model.AccountID, delta int64) (int64, error) {
	total, err := incrementScript.Run(ctx, s.client, []string{accountKey(id)}, delta).Int64()
	if err != nil {
		return 0, mapScriptError(err)
	}
	return total, nil
}

func (s *Storage) SetActive(ctx context.Context, id model.AccountID, active bool, at time.Time) error {
	err := setActiveScript.Run(ctx, s.client, []string{accountKey(id)}, encodeBool(active), encodeTime(at)).Err()
	return mapScriptError(err)
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

// hashReader is satisfied by both the client and a watched transaction
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Storage) load(ctx context.Context, c hashReader, id model.AccountID) (*model.Account, error) {
	h, err := c.HGetAll(ctx, accountKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return decodeAccount(h)
}

// claimable watches an index key and fails with taken if it already exists
func (s *Storage) claimable(ctx context.Context, tx *redis.Tx, key string, taken error) error {
	if err := tx.Watch(ctx, key).Err(); err != nil {
		return err
	}
	n, err := tx.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return taken
	}
	return nil
}

func mapScriptError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, replyNotFound):
		return model.ErrAccountNotFound
	case strings.Contains(msg, replyBlocked):
		return model.ErrAccountBlocked
	case strings.Contains(msg, replyEmailTaken):
		return model.ErrEmailTaken
	case strings.Contains(msg, replyUsernameTaken):
		return model.ErrUsernameTaken
	}
	return err
}
