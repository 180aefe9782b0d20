package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResetTokenManager issues and redeems one-time password-reset tokens
type ResetTokenManager struct {
	resets   ResetTokenRepository
	accounts AccountRepository
	tokens   *TokenGenerator
	ttl      time.Duration
	now      func() time.Time
}

// NewResetTokenManager creates a reset token manager over repo
func NewResetTokenManager(repo Repository, cfg Config) *ResetTokenManager {
	applyDefaults(&cfg)
	return &ResetTokenManager{
		resets:   repo,
		accounts: repo,
		tokens:   NewTokenGenerator(),
		ttl:      cfg.ResetTokenTTL,
		now:      cfg.Now,
	}
}

// Issue creates a reset token for the account registered under email and
// returns it with that account. A nil account means no such account exists;
// callers must not reveal that.
func (m *ResetTokenManager) Issue(ctx context.Context, email string) (string, *Account, error) {
	account, err := m.accounts.GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrRecordNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("load account: %w", err)
	}

	token, tokenHash, err := m.tokens.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	now := m.now()
	if err := m.resets.InsertResetToken(ctx, &ResetToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}); err != nil {
		return "", nil, fmt.Errorf("insert reset token: %w", err)
	}
	return token, account, nil
}

// Validate returns the owning account id of an unused, unexpired token.
func (m *ResetTokenManager) Validate(ctx context.Context, token string) (string, bool, error) {
	return m.validate(ctx, m.resets, token)
}

func (m *ResetTokenManager) validate(ctx context.Context, repo ResetTokenRepository, token string) (string, bool, error) {
	if err := m.tokens.ValidateTokenFormat(token); err != nil {
		return "", false, nil
	}
	rt, err := repo.FindActiveResetToken(ctx, m.tokens.HashToken(token), m.now())
	if errors.Is(err, ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find reset token: %w", err)
	}
	return rt.AccountID, true, nil
}

// Consume marks token as used. It succeeds at most once per token; a used
// or expired token yields ErrInvalidResetToken.
func (m *ResetTokenManager) Consume(ctx context.Context, token string) error {
	return m.consume(ctx, m.resets, token)
}

func (m *ResetTokenManager) consume(ctx context.Context, repo ResetTokenRepository, token string) error {
	changed, err := repo.MarkResetTokenUsed(ctx, m.tokens.HashToken(token), m.now())
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if !changed {
		return ErrInvalidResetToken
	}
	return nil
}

// PurgeExpired deletes expired and used tokens.
func (m *ResetTokenManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.resets.DeleteStaleResetTokens(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("delete stale reset tokens: %w", err)
	}
	return n, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(e string) string {
	return strings.TrimSpace(strings.ToLower(e))
}
