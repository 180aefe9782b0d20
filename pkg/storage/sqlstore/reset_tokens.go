package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/cantor/pkg/auth"
)

// InsertResetToken stores a new, unused reset token
func (s *Store) InsertResetToken(ctx context.Context, token *auth.ResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, account_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q.ExecContext(ctx, query,
		token.ID,
		token.AccountID,
		token.TokenHash,
		utc(token.ExpiresAt),
		false,
		utc(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reset token: %w", err)
	}
	return nil
}

// FindActiveResetToken loads an unused token whose expiry is after now
func (s *Store) FindActiveResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.ResetToken, error) {
	query := `
		SELECT id, account_id, token_hash, expires_at, used, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1 AND used = $2 AND expires_at > $3
	`
	var (
		rt     auth.ResetToken
		usedAt sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, query, tokenHash, false, utc(now)).Scan(
		&rt.ID,
		&rt.AccountID,
		&rt.TokenHash,
		&rt.ExpiresAt,
		&rt.Used,
		&usedAt,
		&rt.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reset token: %w", err)
	}
	if usedAt.Valid {
		t := utc(usedAt.Time)
		rt.UsedAt = &t
	}
	rt.ExpiresAt = utc(rt.ExpiresAt)
	rt.CreatedAt = utc(rt.CreatedAt)
	return &rt, nil
}

// MarkResetTokenUsed consumes a token only while it is unused and live
func (s *Store) MarkResetTokenUsed(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	query := `
		UPDATE password_reset_tokens
		SET used = $1, used_at = $2
		WHERE token_hash = $3 AND used = $4 AND expires_at > $2
	`
	result, err := s.q.ExecContext(ctx, query, true, utc(now), tokenHash, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark reset token used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteStaleResetTokens removes used tokens and tokens expired by now
func (s *Store) DeleteStaleResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE used = $1 OR expires_at <= $2`,
		true, utc(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale reset tokens: %w", err)
	}
	return result.RowsAffected()
}
