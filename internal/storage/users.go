package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/mekiki/internal/model"
)

// CreateUser inserts a reader account and returns it with generated fields.
func (db *DB) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO users (email, display_name, api_key_hash, language, default_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		u.Email, u.DisplayName, u.APIKeyHash, u.Language, u.DefaultLevel, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("storage: create user %s: %w", u.Email, ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("storage: create user %s: %w", u.Email, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user for credential verification.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx, `
		SELECT id, email, display_name, api_key_hash, language, default_level, is_active, created_at, updated_at
		FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.APIKeyHash, &u.Language,
		&u.DefaultLevel, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: get user: %w", ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by primary key.
func (db *DB) GetUserByID(ctx context.Context, id int) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx, `
		SELECT id, email, display_name, api_key_hash, language, default_level, is_active, created_at, updated_at
		FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.APIKeyHash, &u.Language,
		&u.DefaultLevel, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: get user %d: %w", id, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: get user %d: %w", id, err)
	}
	return u, nil
}
