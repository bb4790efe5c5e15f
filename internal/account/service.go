package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dnelles/task-tracker/internal/db"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
)

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// Register creates the user row (or reuses one matching the email) and
// attaches bcrypt credentials. Returns the user id.
func (s *Service) Register(
	ctx context.Context,
	email string,
	password string,
	firstName string,
	lastName string,
) (string, error) {

	var userID uuid.UUID

	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&userID)

	if err == sql.ErrNoRows {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO users (email, first_name, last_name)
			VALUES ($1, $2, $3)
			RETURNING id
		`, email, firstName, lastName).Scan(&userID)
	}

	if err != nil {
		return "", err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM credentials WHERE user_id = $1
		)
	`, userID).Scan(&exists)

	if err != nil {
		return "", err
	}

	if exists {
		return "", ErrAlreadyRegistered
	}

	hash, version, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, userID, hash, version)

	if err != nil {
		return "", err
	}

	return userID.String(), nil
}

// Authenticate verifies email+password and returns the user id.
func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (string, error) {

	var (
		userID       uuid.UUID
		passwordHash string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, c.password_hash
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, email).Scan(&userID, &passwordHash)

	if err != nil {
		// hide whether the user exists or not
		return "", ErrInvalidCredentials
	}

	if err := VerifyPassword(passwordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	return userID.String(), nil
}

// Profile loads the user row for uid.
func (s *Service) Profile(ctx context.Context, uid string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, created_at
		FROM users
		WHERE id = $1
	`, uid).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
