package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/cantor/pkg/observability"
)

// ListAccounts returns every account ordered by name.
func (s *Service) ListAccounts(ctx context.Context) (accounts []*Account, err error) {
	ctx, span := s.startSpan(ctx, "auth.ListAccounts")
	defer func() { endSpan(span, err) }()

	accounts, err = s.store.ListAccounts(ctx)
	if err != nil {
		return nil, InternalError("list accounts", err)
	}
	return accounts, nil
}

// CreateAccount validates in and inserts a new active account.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (account *Account, err error) {
	ctx, span := s.startSpan(ctx, "auth.CreateAccount")
	defer func() { endSpan(span, err) }()

	account, err = s.newAccount(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetAccountByEmail(ctx, account.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, InternalError("check email", err)
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, InternalError("create account", err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID))
	s.record(ctx, AuditEvent{
		Action:    ActionAccountCreate,
		ActorID:   observability.GetUserID(ctx),
		AccountID: account.ID,
		Email:     account.Email,
		Status:    StatusSuccess,
	})
	return account, nil
}

func (s *Service) newAccount(in NewAccount) (*Account, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" || strings.TrimSpace(in.Role) == "" {
		return nil, ValidationError("email, password, name and role are required")
	}
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, ValidationError("invalid role %q", in.Role)
	}
	if err := s.hasher.CheckPolicy(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, InternalError("hash password", err)
	}

	now := s.now()
	account := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Instrument:   optional(in.Instrument),
		Phone:        optional(in.Phone),
		Photo:        optional(in.Photo),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role != RoleMusician {
		account.Instrument = nil
	}
	return account, nil
}

// UpdateAccount applies patch to the account with id. Changing the password
// or deactivating the account revokes all of its sessions. An admin cannot
// change their own role or deactivate themselves.
func (s *Service) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (account *Account, err error) {
	ctx, span := s.startSpan(ctx, "auth.UpdateAccount", attribute.String("account.id", id))
	defer func() { endSpan(span, err) }()

	account, err = s.store.GetAccountByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, InternalError("load account", err)
	}

	actorID := observability.GetUserID(ctx)
	wasActive := account.Active

	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		if email == "" {
			return nil, ValidationError("email cannot be empty")
		}
		if err := checkEmail(email); err != nil {
			return nil, err
		}
		if email != account.Email {
			existing, err := s.store.GetAccountByEmail(ctx, email)
			if err == nil && existing.ID != account.ID {
				return nil, ErrEmailInUse
			}
			if err != nil && !errors.Is(err, ErrRecordNotFound) {
				return nil, InternalError("check email", err)
			}
			account.Email = email
		}
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, ValidationError("name cannot be empty")
		}
		account.Name = name
	}
	if patch.Role != nil {
		role, err := ParseRole(*patch.Role)
		if err != nil {
			return nil, ValidationError("invalid role %q", *patch.Role)
		}
		if role != account.Role && account.ID == actorID {
			return nil, ValidationError("cannot change your own role")
		}
		account.Role = role
	}
	if patch.Instrument != nil {
		account.Instrument = optional(patch.Instrument)
	}
	if account.Role != RoleMusician {
		account.Instrument = nil
	}
	if patch.Phone != nil {
		account.Phone = optional(patch.Phone)
	}
	if patch.Photo != nil {
		account.Photo = optional(patch.Photo)
	}
	if patch.Active != nil {
		if !*patch.Active && account.ID == actorID {
			return nil, ErrSelfDeactivation
		}
		account.Active = *patch.Active
	}

	var newHash []byte
	if patch.NewPassword != nil && *patch.NewPassword != "" {
		if err := s.hasher.CheckPolicy(*patch.NewPassword); err != nil {
			return nil, err
		}
		newHash, err = s.hasher.Hash(*patch.NewPassword)
		if err != nil {
			return nil, InternalError("hash password", err)
		}
	}

	now := s.now()
	account.UpdatedAt = now
	revoke := newHash != nil || (wasActive && !account.Active)

	err = s.store.InTx(ctx, func(tx Repository) error {
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		if newHash != nil {
			if err := tx.SetPassword(ctx, account.ID, newHash, now); err != nil {
				return fmt.Errorf("set password: %w", err)
			}
			account.PasswordHash = newHash
		}
		if revoke {
			if _, err := revokeAll(ctx, tx, account.ID); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return nil, ErrEmailInUse
	case errors.Is(err, ErrRecordNotFound):
		return nil, ErrAccountNotFound
	case err != nil:
		return nil, InternalError("update account", err)
	}

	s.record(ctx, AuditEvent{Action: ActionAccountUpdate, ActorID: actorID, AccountID: account.ID, Status: StatusSuccess})
	return account, nil
}

// DeactivateAccount marks the account inactive and revokes its sessions.
// Accounts are never hard-deleted.
func (s *Service) DeactivateAccount(ctx context.Context, actorID, id string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.DeactivateAccount", attribute.String("account.id", id))
	defer func() { endSpan(span, err) }()

	if actorID == id {
		s.record(ctx, AuditEvent{Action: ActionAccountDelete, ActorID: actorID, AccountID: id, Status: StatusDenied, Err: ErrSelfDeactivation})
		return ErrSelfDeactivation
	}

	account, err := s.store.GetAccountByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return InternalError("load account", err)
	}

	account.Active = false
	account.UpdatedAt = s.now()
	err = s.store.InTx(ctx, func(tx Repository) error {
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		_, err := revokeAll(ctx, tx, account.ID)
		return err
	})
	if errors.Is(err, ErrRecordNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return InternalError("deactivate account", err)
	}

	s.record(ctx, AuditEvent{Action: ActionAccountDelete, ActorID: actorID, AccountID: id, Status: StatusSuccess})
	return nil
}

func checkEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return ValidationError("invalid email address")
	}
	return nil
}

// optional trims v and maps empty strings to nil.
func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
