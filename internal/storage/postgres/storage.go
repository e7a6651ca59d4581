package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Postgres error code for unique_violation
const uniqueViolation = "23505"

// Config holds Postgres settings
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for Postgres
func DefaultConfig() Config {
	return Config{
		DSN:             "postgres://localhost:5432/bananaclick?sslmode=disable",
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Storage is a Postgres-backed implementation of the storage interface
type Storage struct {
	db *sql.DB
}

// New connects, pings and ensures the schema exists
func New(cfg Config) (*Storage, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the connection pool
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

const selectColumns = `
	id, seq, username, email, password_hash, role, score, blocked, active,
	click_level, factory_level, multiplier_level, multiplier_until,
	created_at, updated_at, last_active_at`

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	account.Email = model.NormalizeEmail(account.Email)

	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (
			id, username, email, password_hash, role, score, blocked, active,
			click_level, factory_level, multiplier_level, multiplier_until,
			created_at, updated_at, last_active_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING seq
	`,
		string(account.ID), account.Username, account.Email, account.PasswordHash,
		string(account.Role), account.Score, account.Blocked, account.Active,
		account.Upgrades.ClickLevel, account.Upgrades.FactoryLevel, account.Upgrades.MultiplierLevel,
		nullTime(account.Upgrades.MultiplierUntil),
		account.CreatedAt, account.UpdatedAt, nullTime(account.LastActiveAt),
	).Scan(&seq)
	if err != nil {
		return mapError(err)
	}
	account.Seq = uint64(seq)
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = $1`, string(id))
	return scanAccount(row)
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE email = $1`, model.NormalizeEmail(email))
	return scanAccount(row)
}

func (s *Storage) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Storage) UpdateAccount(ctx context.Context, id model.AccountID, fn storage.MutateFunc) (*model.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, string(id))
	current, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	next, err := storage.Mutate(current, fn)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET
			username = $2, email = $3, password_hash = $4, role = $5, score = $6,
			blocked = $7, active = $8, click_level = $9, factory_level = $10,
			multiplier_level = $11, multiplier_until = $12, updated_at = $13,
			last_active_at = $14
		WHERE id = $1
	`,
		string(id), next.Username, next.Email, next.PasswordHash, string(next.Role), next.Score,
		next.Blocked, next.Active, next.Upgrades.ClickLevel, next.Upgrades.FactoryLevel,
		next.Upgrades.MultiplierLevel, nullTime(next.Upgrades.MultiplierUntil), next.UpdatedAt,
		nullTime(next.LastActiveAt),
	)
	if err != nil {
		return nil, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.AccountID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// IncrementScore adds delta in a single UPDATE so concurrent increments
// serialize on the row lock.
func (s *Storage) IncrementScore(ctx context.Context, id model.AccountID, delta int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET score = score + $2
		WHERE id = $1 AND NOT blocked
		RETURNING score
	`, string(id), delta).Scan(&total)
	if err == nil {
		return total, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// Nothing updated: either missing or blocked
	var blocked bool
	err = s.db.QueryRowContext(ctx, `SELECT blocked FROM accounts WHERE id = $1`, string(id)).Scan(&blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return 0, model.ErrAccountBlocked
}

func (s *Storage) SetActive(ctx context.Context, id model.AccountID, active bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET active = $2, last_active_at = $3 WHERE id = $1
	`, string(id), active, nullTime(at))
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Storage) ListScores(ctx context.Context) ([]model.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, score, blocked, active, seq FROM accounts ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScoreRecord
	for rows.Next() {
		var (
			rec model.ScoreRecord
			id  string
			seq int64
		)
		if err := rows.Scan(&id, &rec.Username, &rec.Score, &rec.Blocked, &rec.Active, &seq); err != nil {
			return nil, err
		}
		rec.AccountID = model.AccountID(id)
		rec.Seq = uint64(seq)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a               model.Account
		id, role        string
		seq             int64
		multiplierUntil sql.NullTime
		lastActiveAt    sql.NullTime
	)
	err := row.Scan(
		&id, &seq, &a.Username, &a.Email, &a.PasswordHash, &role, &a.Score, &a.Blocked, &a.Active,
		&a.Upgrades.ClickLevel, &a.Upgrades.FactoryLevel, &a.Upgrades.MultiplierLevel, &multiplierUntil,
		&a.CreatedAt, &a.UpdatedAt, &lastActiveAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ID = model.AccountID(id)
	a.Role = model.Role(role)
	a.Seq = uint64(seq)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if multiplierUntil.Valid {
		a.Upgrades.MultiplierUntil = multiplierUntil.Time.UTC()
	}
	if lastActiveAt.Valid {
		a.LastActiveAt = lastActiveAt.Time.UTC()
	}
	return &a, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// mapError turns unique violations into the matching domain error
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case constraintEmail:
			return model.ErrEmailTaken
		case constraintUsername:
			return model.ErrUsernameTaken
		}
	}
	return err
}
