package tasks

import (
	"context"
	"database/sql"
	"time"

	"github.com/dnelles/task-tracker/internal/db"
)

const taskColumns = `id, user_id, title, category, class_name, notes, link,
	start_date, due_date, completed, completed_at, time_spent_seconds,
	progress, created_at`

// Store is the persistence layer for tasks. Every read and write is keyed
// by the owning user id; ListAll is the only cross-user read and backs
// the admin view.
type Store interface {
	Create(ctx context.Context, t *Task) error
	CreateBatch(ctx context.Context, ts []Task) error
	Get(ctx context.Context, userID, id string) (*Task, error)
	List(ctx context.Context, userID string, from, to *time.Time) ([]Task, error)
	ListAll(ctx context.Context) ([]Task, error)
	Save(ctx context.Context, t Task) error
	Delete(ctx context.Context, userID, id string) error
}

type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, t *Task) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, title, category, class_name, notes, link,
			due_date, completed, time_spent_seconds, progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, start_date, created_at
	`,
		t.UserID, t.Title, t.Category, t.ClassName, t.Notes, t.Link,
		t.DueDate, t.Completed, t.TimeSpentSeconds, t.Progress,
	).Scan(&t.ID, &t.StartDate, &t.CreatedAt)
}

// CreateBatch inserts every task in one transaction; used by CSV import
// so a failed row leaves nothing behind.
func (s *PostgresStore) CreateBatch(ctx context.Context, ts []Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range ts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (user_id, title, category, class_name, notes, link,
				due_date, completed, time_spent_seconds, progress)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			t.UserID, t.Title, t.Category, t.ClassName, t.Notes, t.Link,
			t.DueDate, t.Completed, t.TimeSpentSeconds, t.Progress,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) Get(ctx context.Context, userID, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1 AND id = $2
	`, userID, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, from, to *time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR due_date >= $2)
		  AND ($3::timestamptz IS NULL OR due_date <= $3)
		ORDER BY due_date ASC NULLS LAST, title ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY user_id ASC, due_date ASC NULLS LAST, title ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (s *PostgresStore) Save(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $3, category = $4, class_name = $5, notes = $6, link = $7,
		    due_date = $8, completed = $9, completed_at = $10,
		    time_spent_seconds = $11, progress = $12
		WHERE user_id = $1 AND id = $2
	`,
		t.UserID, t.ID, t.Title, t.Category, t.ClassName, t.Notes, t.Link,
		t.DueDate, t.Completed, t.CompletedAt, t.TimeSpentSeconds, t.Progress,
	)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE user_id = $1 AND id = $2
	`, userID, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var t Task
	err := r.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Category, &t.ClassName, &t.Notes,
		&t.Link, &t.StartDate, &t.DueDate, &t.Completed, &t.CompletedAt,
		&t.TimeSpentSeconds, &t.Progress, &t.CreatedAt,
	)
	return t, err
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
