package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/authgrid/backend/internal/model"
)

func (db *Postgres) InsertRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenHash, expiresAt)
	return err
}

func (db *Postgres) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var tok model.RefreshToken
	err := db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&tok.ID,
		&tok.UserID,
		&tok.TokenHash,
		&tok.ExpiresAt,
		&tok.RevokedAt,
		&tok.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// ListLiveRefreshTokens returns the user's unrevoked, unexpired tokens,
// oldest first. Device-cap enforcement revokes from the front.
func (db *Postgres) ListLiveRefreshTokens(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY created_at ASC, id ASC
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*model.RefreshToken
	for rows.Next() {
		var tok model.RefreshToken
		if err := rows.Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.RevokedAt, &tok.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, &tok)
	}
	return tokens, rows.Err()
}

// RevokeRefreshToken revokes the token only if it is still live and reports
// whether this call was the one that revoked it.
func (db *Postgres) RevokeRefreshToken(ctx context.Context, tokenID int64) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	tag, err := db.Pool.Exec(ctx, query, tokenID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RotateRefreshToken atomically revokes the old token and inserts its
// replacement. The revoke is conditional on the token still being live, so
// two concurrent rotations of the same token produce exactly one winner; the
// loser gets pgx.ErrNoRows, indistinguishable from an unknown token.
func (db *Postgres) RotateRefreshToken(ctx context.Context, oldTokenID int64, userID uuid.UUID, newTokenHash string, newExpiresAt time.Time) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`, oldTokenID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`, userID, newTokenHash, newExpiresAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *Postgres) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}
