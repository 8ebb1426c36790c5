package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/krisefikser/internal/model"
)

// TokenRepo persists refresh tokens by hash.  A row is consumed by deleting
// it; the row count of that delete decides which of several concurrent
// refresh calls wins.
type TokenRepo struct {
	DB *sql.DB
	Tx *TxManager
}

func NewTokenRepo(db *sql.DB, tx *TxManager) *TokenRepo { return &TokenRepo{DB: db, Tx: tx} }

// Store inserts a refresh token row.
func (r *TokenRepo) Store(ctx context.Context, t model.RefreshToken) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES (?,?,?,?)",
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// FindByHash returns the row for tokenHash or ErrNotFound.  Expiry is left
// to the caller.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	return t, err
}

// DeleteByHash consumes a row.  It returns ErrNotFound when no row was
// deleted, which is what a losing concurrent refresh observes.
func (r *TokenRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Rotate deletes the row for oldHash and inserts next in one transaction.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, next model.RefreshToken) error {
	return r.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.DeleteByHash(ctx, oldHash); err != nil {
			return err
		}
		return r.Store(ctx, next)
	})
}

// DeleteAllForUser removes every refresh token of a user and returns how
// many were removed.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes rows whose expiry is at or before now.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
