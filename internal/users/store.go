package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/usersync/internal/platform/database"
)

// Store persists users. Every method is a single statement; nothing spans
// more than one row.
type Store struct {
	db database.Querier
}

// NewStore creates a user store backed by db.
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// Create inserts u. A second insert for the same id fails with ErrUserDuplicate.
func (s *Store) Create(ctx context.Context, u User) (*User, error) {
	if strings.TrimSpace(u.ID) == "" {
		return nil, ErrUserIDRequired
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO users (id, name, email, image_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.ImageURL,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUserDuplicate, u.ID, err)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &u, nil
}

// Update overwrites name, email and image of the row keyed by u.ID.
func (s *Store) Update(ctx context.Context, u User) (*User, error) {
	if strings.TrimSpace(u.ID) == "" {
		return nil, ErrUserIDRequired
	}

	err := s.db.QueryRow(ctx,
		`UPDATE users
		 SET name = $2, email = $3, image_url = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.ImageURL,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, u.ID)
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return &u, nil
}

// Delete removes the row keyed by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrUserIDRequired
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return nil
}

// GetByID retrieves a user by its provider id.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx,
		`SELECT id, name, email, image_url, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}
