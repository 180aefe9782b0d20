package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/cantor/pkg/auth"
)

// InsertSession stores a new session row
func (s *Store) InsertSession(ctx context.Context, session *auth.Session) error {
	query := `
		INSERT INTO sessions (id, account_id, token_hash, expires_at, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q.ExecContext(ctx, query,
		session.ID,
		session.AccountID,
		session.TokenHash,
		utc(session.ExpiresAt),
		utc(session.LastActivity),
		utc(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// TouchSession slides a live session forward in a single statement
func (s *Store) TouchSession(ctx context.Context, tokenHash string, now, expiresAt time.Time) (string, error) {
	query := `
		UPDATE sessions
		SET expires_at = $1, last_activity = $2
		WHERE token_hash = $3 AND expires_at > $2
		RETURNING account_id
	`
	var accountID string
	err := s.q.QueryRowContext(ctx, query, utc(expiresAt), utc(now), tokenHash).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to touch session: %w", err)
	}
	return accountID, nil
}

// GetSession loads a session by token hash, expired or not
func (s *Store) GetSession(ctx context.Context, tokenHash string) (*auth.Session, error) {
	query := `
		SELECT id, account_id, token_hash, expires_at, last_activity, created_at
		FROM sessions WHERE token_hash = $1
	`
	var session auth.Session
	err := s.q.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.AccountID,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.LastActivity,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.ExpiresAt = utc(session.ExpiresAt)
	session.LastActivity = utc(session.LastActivity)
	session.CreatedAt = utc(session.CreatedAt)
	return &session, nil
}

// CountSessions returns the number of session rows for accountID
func (s *Store) CountSessions(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// DeleteSession removes the session with tokenHash, if any
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteAccountSessions removes every session of accountID
func (s *Store) DeleteAccountSessions(ctx context.Context, accountID string) (int64, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete account sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpiredSessions removes sessions whose expiry is not after now
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, utc(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
