package auth

import (
	"context"
	"time"
)

// AccountRepository persists accounts. Lookups return ErrRecordNotFound on
// a miss; inserts and email changes return ErrDuplicateEmail on a unique
// violation.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error
	SetPassword(ctx context.Context, accountID string, hash []byte, now time.Time) error
	HasAccountWithRole(ctx context.Context, role Role) (bool, error)
}

// SessionRepository persists sessions by token hash
type SessionRepository interface {
	InsertSession(ctx context.Context, session *Session) error

	// TouchSession atomically extends a live session: it sets expires_at and
	// last_activity on the row matching tokenHash whose expiry is after now,
	// and returns the owning account id. ErrRecordNotFound when no live row
	// matches.
	TouchSession(ctx context.Context, tokenHash string, now, expiresAt time.Time) (string, error)

	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteAccountSessions(ctx context.Context, accountID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenRepository persists password-reset tokens by token hash
type ResetTokenRepository interface {
	InsertResetToken(ctx context.Context, token *ResetToken) error

	// FindActiveResetToken returns the unused, unexpired token matching
	// tokenHash or ErrRecordNotFound.
	FindActiveResetToken(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)

	// MarkResetTokenUsed flips used to true only if the token is still
	// unused and unexpired, reporting whether a row changed.
	MarkResetTokenUsed(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	DeleteStaleResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// Repository groups every table the auth core reads and writes
type Repository interface {
	AccountRepository
	SessionRepository
	ResetTokenRepository
}

// Store is a Repository that can also run a unit of work in a transaction.
// The Repository handed to fn is bound to the transaction; returning an
// error rolls it back.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}
