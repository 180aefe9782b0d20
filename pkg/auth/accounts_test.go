package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/observability"
)

func ptr[T any](v T) *T { return &v }

func TestCreateAccount_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   auth.NewAccount
	}{
		{"missing email", auth.NewAccount{Password: "secret1", Name: "A", Role: "admin"}},
		{"missing password", auth.NewAccount{Email: "a@x.com", Name: "A", Role: "admin"}},
		{"missing name", auth.NewAccount{Email: "a@x.com", Password: "secret1", Role: "admin"}},
		{"missing role", auth.NewAccount{Email: "a@x.com", Password: "secret1", Name: "A"}},
		{"unknown role", auth.NewAccount{Email: "a@x.com", Password: "secret1", Name: "A", Role: "owner"}},
		{"bad email", auth.NewAccount{Email: "not-an-email", Password: "secret1", Name: "A", Role: "admin"}},
		{"short password", auth.NewAccount{Email: "a@x.com", Password: "12345", Name: "A", Role: "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAccount(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, auth.KindValidation, auth.KindOf(err))
		})
	}

	accounts, err := f.svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestCreateAccount_InstrumentOnlyForMusicians(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.CreateAccount(ctx, auth.NewAccount{
		Email: "admin@x.com", Password: "secret1", Name: "Admin", Role: "admin",
		Instrument: ptr("piano"), Phone: ptr("555"),
	})
	require.NoError(t, err)
	assert.Nil(t, admin.Instrument)
	require.NotNil(t, admin.Phone)

	musician, err := f.svc.CreateAccount(ctx, auth.NewAccount{
		Email: "m@x.com", Password: "secret1", Name: "M", Role: "musico",
		Instrument: ptr(" guitar "),
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMusician, musician.Role)
	require.NotNil(t, musician.Instrument)
	assert.Equal(t, "guitar", *musician.Instrument)
	assert.True(t, musician.Active)
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	_, err := f.svc.CreateAccount(ctx, auth.NewAccount{
		Email: "A@X.com", Password: "secret2", Name: "Other", Role: "admin",
	})
	assert.ErrorIs(t, err, auth.ErrEmailInUse)
	assert.Equal(t, auth.KindConflict, auth.KindOf(err))

	accounts, err := f.svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	admin := f.createAccount(t, "admin@x.com", "secret1", auth.RoleAdmin)
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)
	ctx := observability.WithUserID(context.Background(), admin.ID)

	updated, err := f.svc.UpdateAccount(ctx, a.ID, auth.AccountPatch{
		Name:       ptr("Ana Maria"),
		Instrument: ptr("flute"),
		Phone:      ptr("555-0199"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.Equal(t, "flute", *updated.Instrument)
	assert.Equal(t, "a@x.com", updated.Email)

	// Promotion drops the instrument
	updated, err = f.svc.UpdateAccount(ctx, a.ID, auth.AccountPatch{Role: ptr("admin")})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, updated.Role)
	assert.Nil(t, updated.Instrument)

	_, err = f.svc.UpdateAccount(ctx, "missing", auth.AccountPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	_, err = f.svc.UpdateAccount(ctx, a.ID, auth.AccountPatch{Role: ptr("bishop")})
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))

	_, err = f.svc.UpdateAccount(ctx, a.ID, auth.AccountPatch{Email: ptr("admin@x.com")})
	assert.ErrorIs(t, err, auth.ErrEmailInUse)

	_, err = f.svc.UpdateAccount(ctx, a.ID, auth.AccountPatch{Name: ptr("  ")})
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))
}

func TestUpdateAccount_SelfGuards(t *testing.T) {
	f := newFixture(t)
	admin := f.createAccount(t, "admin@x.com", "secret1", auth.RoleAdmin)
	ctx := observability.WithUserID(context.Background(), admin.ID)

	_, err := f.svc.UpdateAccount(ctx, admin.ID, auth.AccountPatch{Role: ptr("musician")})
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))

	_, err = f.svc.UpdateAccount(ctx, admin.ID, auth.AccountPatch{Active: ptr(false)})
	assert.ErrorIs(t, err, auth.ErrSelfDeactivation)

	// Renaming yourself is fine
	_, err = f.svc.UpdateAccount(ctx, admin.ID, auth.AccountPatch{Name: ptr("Padre")})
	assert.NoError(t, err)
}

func TestUpdateAccount_NewPasswordRevokesSessions(t *testing.T) {
	f := newFixture(t)
	admin := f.createAccount(t, "admin@x.com", "secret1", auth.RoleAdmin)
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)
	ctx := observability.WithUserID(context.Background(), admin.ID)

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = f.svc.UpdateAccount(ctx, res.Identity.ID, auth.AccountPatch{NewPassword: ptr("123")})
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))

	_, err = f.svc.UpdateAccount(ctx, res.Identity.ID, auth.AccountPatch{NewPassword: ptr("changed1")})
	require.NoError(t, err)

	_, err = f.svc.Identity(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)

	_, err = f.svc.Login(ctx, "a@x.com", "changed1")
	assert.NoError(t, err)
}

func TestDeactivateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createAccount(t, "admin@x.com", "secret1", auth.RoleAdmin)
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	assert.ErrorIs(t, f.svc.DeactivateAccount(ctx, admin.ID, admin.ID), auth.ErrSelfDeactivation)
	assert.ErrorIs(t, f.svc.DeactivateAccount(ctx, admin.ID, "missing"), auth.ErrAccountNotFound)

	require.NoError(t, f.svc.DeactivateAccount(ctx, admin.ID, a.ID))

	accounts, err := f.svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2, "deactivation keeps the row")
	for _, acc := range accounts {
		if acc.ID == a.ID {
			assert.False(t, acc.Active)
		}
	}
}

func TestSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seeds := []auth.SeedAccount{
		{Email: "admin@parish.org", Password: "change-me", Role: auth.RoleAdmin},
		{Email: "", Password: "x", Role: auth.RoleMusician},
	}

	n, err := f.svc.Seed(ctx, seeds...)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := f.svc.Login(ctx, "admin@parish.org", "change-me")
	require.NoError(t, err)
	assert.Equal(t, "Administrator", res.Identity.Name)
	assert.True(t, res.Identity.IsAdmin())

	// Second run is a no-op
	n, err = f.svc.Seed(ctx, seeds...)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeed_InvalidAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Seed(context.Background(), auth.SeedAccount{Email: "admin@parish.org", Password: "123", Role: auth.RoleAdmin})
	assert.Error(t, err)
}
