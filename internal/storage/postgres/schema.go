package postgres

import (
	"context"
	"database/sql"
)

const (
	constraintEmail    = "accounts_email_key"
	constraintUsername = "accounts_username_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id               TEXT PRIMARY KEY,
	seq              BIGSERIAL NOT NULL,
	username         TEXT NOT NULL,
	email            TEXT NOT NULL,
	password_hash    TEXT NOT NULL,
	role             TEXT NOT NULL,
	score            BIGINT NOT NULL DEFAULT 0,
	blocked          BOOLEAN NOT NULL DEFAULT FALSE,
	active           BOOLEAN NOT NULL DEFAULT FALSE,
	click_level      INTEGER NOT NULL DEFAULT 1,
	factory_level    INTEGER NOT NULL DEFAULT 0,
	multiplier_level INTEGER NOT NULL DEFAULT 1,
	multiplier_until TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	last_active_at   TIMESTAMPTZ,
	CONSTRAINT accounts_email_key UNIQUE (email),
	CONSTRAINT accounts_username_key UNIQUE (username)
);
CREATE INDEX IF NOT EXISTS accounts_score_idx ON accounts (score DESC, seq ASC);
`

// ensureSchema creates the accounts table if needed
func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
