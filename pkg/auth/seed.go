package auth

import (
	"context"
	"fmt"
)

// Seed creates each account whose role has no account yet. It returns the
// number of accounts created. Entries without an email or password are
// skipped.
func (s *Service) Seed(ctx context.Context, seeds ...SeedAccount) (int, error) {
	created := 0
	for _, seed := range seeds {
		if seed.Email == "" || seed.Password == "" {
			continue
		}

		exists, err := s.store.HasAccountWithRole(ctx, seed.Role)
		if err != nil {
			return created, fmt.Errorf("check %s accounts: %w", seed.Role, err)
		}
		if exists {
			continue
		}

		name := seed.Name
		if name == "" {
			name = defaultSeedName(seed.Role)
		}
		account, err := s.CreateAccount(ctx, NewAccount{
			Email:      seed.Email,
			Password:   seed.Password,
			Name:       name,
			Role:       string(seed.Role),
			Instrument: seed.Instrument,
			Phone:      seed.Phone,
		})
		if err != nil {
			return created, fmt.Errorf("seed %s account: %w", seed.Role, err)
		}

		created++
		s.record(ctx, AuditEvent{Action: ActionAccountSeed, AccountID: account.ID, Email: account.Email, Status: StatusSuccess})
	}
	return created, nil
}

func defaultSeedName(role Role) string {
	if role == RoleAdmin {
		return "Administrator"
	}
	return "Musician"
}
