package vault

import (
	"context"
	"database/sql"

	"github.com/dnelles/task-tracker/internal/db"
)

// Store persists token records. Get returns (nil, nil) when no record
// exists for the uid.
type Store interface {
	Upsert(ctx context.Context, rec TokenRecord) error
	Get(ctx context.Context, uid string) (*TokenRecord, error)
	Delete(ctx context.Context, uid string) error
}

type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert replaces any prior grant for the uid. A reconnect overwrites the
// old refresh token without requiring a delete first.
func (s *PostgresStore) Upsert(ctx context.Context, rec TokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO google_tokens (uid, provider, refresh_token, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE
		SET provider = EXCLUDED.provider,
		    refresh_token = EXCLUDED.refresh_token,
		    created_at = EXCLUDED.created_at
	`, rec.UID, rec.Provider, rec.RefreshToken, rec.CreatedAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, uid string) (*TokenRecord, error) {
	var rec TokenRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, provider, refresh_token, created_at
		FROM google_tokens
		WHERE uid = $1
	`, uid).Scan(&rec.UID, &rec.Provider, &rec.RefreshToken, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM google_tokens
		WHERE uid = $1
	`, uid)
	return err
}
