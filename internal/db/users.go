package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Vazhid/lezgian-tts/internal/models"
)

// CreateUser inserts a new user record with a pre-hashed password.
// Returns the generated user id.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	query := `
		INSERT INTO users (username, password, date_joined, is_active)
		VALUES ($1, $2, $3, 1)
		RETURNING id
	`

	var id int64
	err := db.QueryRowContext(ctx, query, username, passwordHash, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	return id, nil
}

// GetUserByUsername retrieves a user by username, including the
// password hash for login verification.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password, last_login, date_joined, is_superuser, is_active
		FROM users
		WHERE username = $1
	`

	user := &models.User{}
	var isSuperuser, isActive int
	err := db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Password,
		&user.LastLogin, &user.DateJoined, &isSuperuser, &isActive,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	user.IsSuperuser = isSuperuser != 0
	user.IsActive = isActive != 0
	return user, nil
}

// GetUser retrieves a user by id.
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, password, last_login, date_joined, is_superuser, is_active
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	var isSuperuser, isActive int
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Password,
		&user.LastLogin, &user.DateJoined, &isSuperuser, &isActive,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.IsSuperuser = isSuperuser != 0
	user.IsActive = isActive != 0
	return user, nil
}

// UsernameTaken reports whether a username is already registered.
func (db *DB) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// TouchLastLogin stamps the user's last successful login time.
func (db *DB) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET last_login = $1 WHERE id = $2`, time.Now(), id)
	return err
}
