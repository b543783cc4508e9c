package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/authgrid/backend/internal/model"
)

const userColumns = `id, name, email, username, password_hash, status,
	verification_token, verification_expires, two_fa_enabled, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Status,
		&user.VerificationToken,
		&user.VerificationExpires,
		&user.TwoFAEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	query := `
		INSERT INTO users (id, name, email, username, password_hash, status,
			verification_token, verification_expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + userColumns
	row := db.Pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Status,
		user.VerificationToken,
		user.VerificationExpires,
	)
	return scanUser(row)
}

// GetUserByIdentifier matches either email or username.
func (db *Postgres) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 OR username = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, query, identifier))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, query, email))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE verification_token = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, query, token))
}

func (db *Postgres) SetVerificationToken(ctx context.Context, userID uuid.UUID, tokenValue string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET verification_token = $2, verification_expires = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenValue, expiresAt)
	return err
}

// ActivateUser flips the user to ACTIVE and clears the verification token.
func (db *Postgres) ActivateUser(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET status = $2, verification_token = NULL, verification_expires = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID, model.UserStatusActive)
	return err
}
