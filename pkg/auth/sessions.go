package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionManager issues, validates and revokes server-side sessions
type SessionManager struct {
	sessions SessionRepository
	accounts AccountRepository
	tokens   *TokenGenerator
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager creates a session manager over repo
func NewSessionManager(repo Repository, cfg Config) *SessionManager {
	applyDefaults(&cfg)
	return &SessionManager{
		sessions: repo,
		accounts: repo,
		tokens:   NewTokenGenerator(),
		ttl:      cfg.SessionTTL,
		now:      cfg.Now,
	}
}

// TTL returns the sliding session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session for accountID and returns the bearer token. The
// token is returned exactly once; only its hash is stored.
func (m *SessionManager) Create(ctx context.Context, accountID string) (string, error) {
	return m.create(ctx, m.sessions, accountID)
}

func (m *SessionManager) create(ctx context.Context, repo SessionRepository, accountID string) (string, error) {
	token, tokenHash, err := m.tokens.GenerateToken()
	if err != nil {
		return "", err
	}

	now := m.now()
	session := &Session{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		TokenHash:    tokenHash,
		ExpiresAt:    now.Add(m.ttl),
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := repo.InsertSession(ctx, session); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// Validate resolves token to the identity that owns it.
//
// Validate is not a pure read: on success it pushes the session's expiry to
// now+TTL and records last activity (sliding expiration). The renewal is a
// single conditional UPDATE, so concurrent validations of one token settle
// on last-writer-wins without corrupting the row.
//
// Returns ok=false, with no side effect, for malformed, unknown or expired
// tokens. A live session whose account is missing or deactivated is deleted
// and also reported as ok=false.
func (m *SessionManager) Validate(ctx context.Context, token string) (Identity, bool, error) {
	if err := m.tokens.ValidateTokenFormat(token); err != nil {
		return Identity{}, false, nil
	}
	tokenHash := m.tokens.HashToken(token)

	now := m.now()
	accountID, err := m.sessions.TouchSession(ctx, tokenHash, now, now.Add(m.ttl))
	if errors.Is(err, ErrRecordNotFound) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("touch session: %w", err)
	}

	account, err := m.accounts.GetAccountByID(ctx, accountID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return Identity{}, false, fmt.Errorf("load account: %w", err)
	}
	if account == nil || !account.Active {
		if err := m.sessions.DeleteSession(ctx, tokenHash); err != nil {
			return Identity{}, false, fmt.Errorf("delete orphan session: %w", err)
		}
		return Identity{}, false, nil
	}

	return account.Identity(), true, nil
}

// Revoke deletes the session for token. Unknown tokens are not an error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.DeleteSession(ctx, m.tokens.HashToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeAll deletes every session of accountID.
func (m *SessionManager) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	return revokeAll(ctx, m.sessions, accountID)
}

func revokeAll(ctx context.Context, repo SessionRepository, accountID string) (int64, error) {
	n, err := repo.DeleteAccountSessions(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete account sessions: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes sessions whose expiry has passed. Expired rows are
// already ignored by Validate, so this is storage hygiene only.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}
