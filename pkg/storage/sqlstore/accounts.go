package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/cantor/pkg/auth"
)

const accountColumns = `id, email, password_hash, name, role, instrument, phone, photo, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*auth.Account, error) {
	var (
		a                        auth.Account
		role                     string
		hash                     string
		instrument, phone, photo sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Email, &hash, &a.Name, &role,
		&instrument, &phone, &photo, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PasswordHash = []byte(hash)
	a.Role = auth.Role(role)
	a.Instrument = stringPtr(instrument)
	a.Phone = stringPtr(phone)
	a.Photo = stringPtr(photo)
	a.CreatedAt = utc(a.CreatedAt)
	a.UpdatedAt = utc(a.UpdatedAt)
	return &a, nil
}

// CreateAccount inserts account. A taken email yields auth.ErrDuplicateEmail.
func (s *Store) CreateAccount(ctx context.Context, account *auth.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.q.ExecContext(ctx, query,
		account.ID,
		account.Email,
		string(account.PasswordHash),
		account.Name,
		string(account.Role),
		nullString(account.Instrument),
		nullString(account.Phone),
		nullString(account.Photo),
		account.Active,
		utc(account.CreatedAt),
		utc(account.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return auth.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByID loads an account by id
func (s *Store) GetAccountByID(ctx context.Context, id string) (*auth.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccountByEmail loads an account by its normalized email
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts ordered by name
func (s *Store) ListAccounts(ctx context.Context) ([]*auth.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*auth.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount writes every mutable field except the password hash
func (s *Store) UpdateAccount(ctx context.Context, account *auth.Account) error {
	query := `
		UPDATE accounts
		SET email = $1, name = $2, role = $3, instrument = $4, phone = $5,
		    photo = $6, active = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := s.q.ExecContext(ctx, query,
		account.Email,
		account.Name,
		string(account.Role),
		nullString(account.Instrument),
		nullString(account.Phone),
		nullString(account.Photo),
		account.Active,
		utc(account.UpdatedAt),
		account.ID,
	)
	if isUniqueViolation(err) {
		return auth.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return expectRow(result)
}

// SetPassword replaces the password hash of accountID
func (s *Store) SetPassword(ctx context.Context, accountID string, hash []byte, now time.Time) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hash), utc(now), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return expectRow(result)
}

// HasAccountWithRole reports whether any account holds role
func (s *Store) HasAccountWithRole(ctx context.Context, role auth.Role) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE role = $1)`, string(role),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check accounts by role: %w", err)
	}
	return exists, nil
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return auth.ErrRecordNotFound
	}
	return nil
}
