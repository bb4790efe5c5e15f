package activity

import (
	"context"
	"time"

	"github.com/dnelles/task-tracker/internal/db"
)

type Entry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends and lists per-user activity log entries.
type Store interface {
	Append(ctx context.Context, userID, message string) error
	List(ctx context.Context, userID string, limit int) ([]Entry, error)
}

type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, userID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (user_id, message)
		VALUES ($1, $2)
	`, userID, message)
	return err
}

func (s *PostgresStore) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, created_at
		FROM activity_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
