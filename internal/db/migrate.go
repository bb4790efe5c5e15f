package db

import (
	"context"
	"database/sql"
)

const keystoneMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    email text NOT NULL,
    first_name text NOT NULL DEFAULT '',
    last_name text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_unique
ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS credentials (
    user_id uuid PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    password_hash text NOT NULL,
    hash_version text NOT NULL DEFAULT 'bcrypt',
    created_at timestamptz NOT NULL DEFAULT NOW()
);

-- uid is opaque text, not a foreign key: the OAuth flow only sees the
-- subject identifier round-tripped through the state parameter.
CREATE TABLE IF NOT EXISTS google_tokens (
    uid text PRIMARY KEY,
    provider text NOT NULL DEFAULT 'tasks',
    refresh_token text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tasks (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title text NOT NULL,
    category text NOT NULL DEFAULT 'School',
    class_name text NOT NULL DEFAULT '',
    notes text NOT NULL DEFAULT '',
    link text NOT NULL DEFAULT '',
    start_date timestamptz NOT NULL DEFAULT NOW(),
    due_date timestamptz,
    completed boolean NOT NULL DEFAULT false,
    completed_at timestamptz,
    time_spent_seconds bigint NOT NULL DEFAULT 0,
    progress int NOT NULL DEFAULT 0,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS tasks_user_id_due_date_idx
ON tasks (user_id, due_date);

CREATE TABLE IF NOT EXISTS activity_log (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    message text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS activity_log_user_id_created_at_idx
ON activity_log (user_id, created_at DESC);
`

// RunKeystoneMigration applies the idempotent schema. There is no
// migration history table; every statement is IF NOT EXISTS.
func RunKeystoneMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, keystoneMigration)
	return err
}
