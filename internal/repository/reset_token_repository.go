package repository

import (
	"context"
	"errors"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

type ResetTokenRepository struct{}

func NewResetTokenRepository() *ResetTokenRepository {
	return &ResetTokenRepository{}
}


// Upsert stores the token for a user, superseding any prior live token.
// At most one live reset token exists per user at any time.
func (r *ResetTokenRepository) Upsert(ctx context.Context, q database.Queryer, t models.ResetToken) error {
	const query = `
		INSERT INTO reset_tokens (id, user_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			id = EXCLUDED.id,
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			used = FALSE,
			created_at = NOW()
	`
	_, err := q.Exec(ctx, query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt)
	return err
}

// ListLive returns unused, unexpired tokens. The caller verifies the raw
// value against each digest.
func (r *ResetTokenRepository) ListLive(ctx context.Context, q database.Queryer) ([]models.ResetToken, error) {
	const query = `
		SELECT id, user_id, token_hash, expires_at, used, created_at
		FROM reset_tokens
		WHERE NOT used AND expires_at > NOW()
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.ResetToken
	for rows.Next() {
		var t models.ResetToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// MarkUsed flips the used flag if and only if the token is still live.
// The conditional update is what makes concurrent consumes of the same raw
// token resolve to exactly one winner.
func (r *ResetTokenRepository) MarkUsed(ctx context.Context, q database.Queryer, id string) error {
	const query = `
		UPDATE reset_tokens SET used = TRUE
		WHERE id = $1 AND NOT used AND expires_at > NOW()
	`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrResetTokenNotFound
	}
	return nil
}

func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, q database.Queryer) (int64, error) {
	const query = `DELETE FROM reset_tokens WHERE used OR expires_at <= NOW()`
	cmd, err := q.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
