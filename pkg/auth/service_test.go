package auth_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/cantor/pkg/async"
	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/observability"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

// clock is a manually advanced time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureNotifier records reset tokens handed out by ForgotPassword
type captureNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *captureNotifier) NotifyPasswordReset(_ context.Context, identity auth.Identity, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = make(map[string]string)
	}
	n.tokens[identity.Email] = token
	return nil
}

func (n *captureNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

type fixture struct {
	svc      *auth.Service
	store    *sqlstore.Store
	clock    *clock
	notifier *captureNotifier
	logs     *bytes.Buffer
	metrics  *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "auth.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	clk := newClock()
	notifier := &captureNotifier{}
	logs := &bytes.Buffer{}
	logger := observability.NewLogger(observability.DebugLevel, logs)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	svc, err := auth.NewService(store, auth.Config{
		SessionTTL:    30 * time.Minute,
		ResetTokenTTL: time.Hour,
		BcryptCost:    bcrypt.MinCost,
		Now:           clk.Now,
	},
		auth.WithResetNotifier(notifier),
		auth.WithLogger(logger),
		auth.WithAuditLogger(auth.NewAuditLogger(logger)),
		auth.WithMetrics(metrics),
	)
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, clock: clk, notifier: notifier, logs: logs, metrics: metrics}
}

func (f *fixture) createAccount(t *testing.T, email, password string, role auth.Role) *auth.Account {
	t.Helper()
	a, err := f.svc.CreateAccount(context.Background(), auth.NewAccount{
		Email:    email,
		Password: password,
		Name:     email,
		Role:     string(role),
	})
	require.NoError(t, err)
	return a
}

func TestLogin_ValidatesToSameAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, res.Token, 64)
	assert.Equal(t, a.ID, res.Identity.ID)
	assert.Equal(t, auth.RoleMusician, res.Identity.Role)

	identity, err := f.svc.Identity(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, identity.ID)
	assert.Equal(t, "a@x.com", identity.Email)
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "Ana@Parish.org", "secret1", auth.RoleMusician)

	_, err := f.svc.Login(context.Background(), "  ana@PARISH.org ", "secret1")
	assert.NoError(t, err)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	_, wrongPassword := f.svc.Login(ctx, "a@x.com", "wrong")
	_, unknownEmail := f.svc.Login(ctx, "nobody@x.com", "secret1")

	assert.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, auth.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, auth.KindAuthentication, auth.KindOf(wrongPassword))

	n, err := f.store.CountSessions(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "failed login must not create a session")
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "", "x")
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))

	_, err = f.svc.Login(context.Background(), "a@x.com", "")
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createAccount(t, "admin@x.com", "secret1", auth.RoleAdmin)
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	require.NoError(t, f.svc.DeactivateAccount(ctx, admin.ID, a.ID))

	_, err := f.svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrAccountDeactivated)

	n, err := f.store.CountSessions(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogout_RoundTripAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, res.Token))
	_, err = f.svc.Identity(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)

	assert.NoError(t, f.svc.Logout(ctx, res.Token))
	assert.NoError(t, f.svc.Sessions.Revoke(ctx, res.Token))
	assert.NoError(t, f.svc.Logout(ctx, "not-a-token"))
}

func TestSession_SlidingExpiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	tokenHash := auth.NewTokenGenerator().HashToken(res.Token)

	session, err := f.store.GetSession(ctx, tokenHash)
	require.NoError(t, err)
	prev := session.ExpiresAt
	assert.True(t, f.clock.Now().Add(30*time.Minute).Equal(prev))

	// Stay active past the original 30 minutes in 20-minute steps
	for i := 0; i < 4; i++ {
		f.clock.Advance(20 * time.Minute)
		_, ok, err := f.svc.Sessions.Validate(ctx, res.Token)
		require.NoError(t, err)
		require.True(t, ok, "step %d", i)

		session, err = f.store.GetSession(ctx, tokenHash)
		require.NoError(t, err)
		assert.True(t, session.ExpiresAt.After(prev))
		assert.False(t, session.ExpiresAt.After(f.clock.Now().Add(30*time.Minute)))
		assert.True(t, f.clock.Now().Equal(session.LastActivity))
		prev = session.ExpiresAt
	}

	// Idle beyond the TTL
	f.clock.Advance(31 * time.Minute)
	_, ok, err := f.svc.Sessions.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, ok)

	session, err = f.store.GetSession(ctx, tokenHash)
	require.NoError(t, err)
	assert.True(t, prev.Equal(session.ExpiresAt), "expired validation must not extend")
}

func TestSession_MalformedTokenIsRejected(t *testing.T) {
	f := newFixture(t)

	for _, tok := range []string{"", "abc", strings.Repeat("g", 64)} {
		_, ok, err := f.svc.Sessions.Validate(context.Background(), tok)
		assert.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestSession_DeactivationRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createAccount(t, "admin@x.com", "secret1", auth.RoleAdmin)
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	res, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeactivateAccount(ctx, admin.ID, a.ID))

	_, ok, err := f.svc.Sessions.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_PurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	_, err := f.svc.Sessions.Create(ctx, a.ID)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	live, err := f.svc.Sessions.Create(ctx, a.ID)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Minute)
	n, err := f.svc.Sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := f.svc.Sessions.Validate(ctx, live)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForgotPassword_SameOutcomeForUnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	assert.NoError(t, f.svc.ForgotPassword(ctx, "nonexistent@x.com"))
	assert.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))

	assert.Empty(t, f.notifier.token("nonexistent@x.com"))
	assert.Len(t, f.notifier.token("a@x.com"), 64)

	err := f.svc.ForgotPassword(ctx, "  ")
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))
}

func TestResetPassword_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	old, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	token := f.notifier.token("a@x.com")
	require.NotEmpty(t, token)

	accountID, ok, err := f.svc.ResetTokens.Validate(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.ID, accountID)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "brand-new"))

	_, err = f.svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@x.com", "brand-new")
	assert.NoError(t, err)

	// Old sessions are revoked by the reset
	_, err = f.svc.Identity(ctx, old.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)

	// Consumed tokens stay invalid, even before expiry
	_, ok, err = f.svc.ResetTokens.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "another1"), auth.ErrInvalidResetToken)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	token := f.notifier.token("a@x.com")

	f.clock.Advance(61 * time.Minute)

	_, ok, err := f.svc.ResetTokens.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)

	err = f.svc.ResetPassword(ctx, token, "brand-new")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))

	_, err = f.svc.Login(ctx, "a@x.com", "secret1")
	assert.NoError(t, err, "password must be unchanged")
}

func TestResetPassword_WeakPasswordKeepsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	token := f.notifier.token("a@x.com")

	err := f.svc.ResetPassword(ctx, token, "123")
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))

	_, ok, err := f.svc.ResetTokens.Validate(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetTokens_ConsumeAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	token, owner, err := f.svc.ResetTokens.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "a@x.com", owner.Email)

	require.NoError(t, f.svc.ResetTokens.Consume(ctx, token))
	assert.ErrorIs(t, f.svc.ResetTokens.Consume(ctx, token), auth.ErrInvalidResetToken)

	_, owner, err = f.svc.ResetTokens.Issue(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.Nil(t, owner)

	n, err := f.svc.ResetTokens.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLogNotifier_WritesDebugLine(t *testing.T) {
	var buf bytes.Buffer
	n := auth.LogNotifier{Logger: observability.NewLogger(observability.DebugLevel, &buf)}

	require.NoError(t, n.NotifyPasswordReset(context.Background(), auth.Identity{ID: "1", Email: "a@x.com"}, "tok"))
	assert.Contains(t, buf.String(), `"reset_token":"tok"`)

	buf.Reset()
	quiet := auth.LogNotifier{Logger: observability.NewLogger(observability.InfoLevel, &buf)}
	require.NoError(t, quiet.NotifyPasswordReset(context.Background(), auth.Identity{ID: "1"}, "tok"))
	assert.Empty(t, buf.String())
}

func TestMetrics_LoginAndResetOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createAccount(t, "admin@x.com", "secret1", auth.RoleAdmin)
	a := f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)
	f.createAccount(t, "b@x.com", "secret1", auth.RoleMusician)
	require.NoError(t, f.svc.DeactivateAccount(ctx, admin.ID, a.ID))

	_, _ = f.svc.Login(ctx, "b@x.com", "secret1")
	_, _ = f.svc.Login(ctx, "b@x.com", "wrong")
	_, _ = f.svc.Login(ctx, "a@x.com", "secret1")

	logins := f.metrics.LoginAttemptsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(logins.WithLabelValues(observability.LoginSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(logins.WithLabelValues(observability.LoginInvalidCredentials)))
	assert.Equal(t, 1.0, testutil.ToFloat64(logins.WithLabelValues(observability.LoginDeactivated)))

	require.NoError(t, f.svc.ForgotPassword(ctx, "b@x.com"))
	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@x.com"))
	require.NoError(t, f.svc.ResetPassword(ctx, f.notifier.token("b@x.com"), "brand-new"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "bogus", "brand-new"), auth.ErrInvalidResetToken)

	resets := f.metrics.PasswordResetsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(resets.WithLabelValues("requested", "issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(resets.WithLabelValues("requested", "unknown_email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(resets.WithLabelValues("completed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(resets.WithLabelValues("completed", "invalid_token")))
}

// blockingNotifier waits for release before recording
type blockingNotifier struct {
	release   chan struct{}
	delivered chan string
}

func (n *blockingNotifier) NotifyPasswordReset(ctx context.Context, identity auth.Identity, token string) error {
	<-n.release
	n.delivered <- identity.Email
	return nil
}

func TestAsyncNotifier_DoesNotBlockForgotPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	runner := async.NewRunner(observability.NewLogger(observability.DebugLevel, nil), time.Second)
	next := &blockingNotifier{release: make(chan struct{}), delivered: make(chan string, 1)}
	svc, err := auth.NewService(f.store, auth.Config{BcryptCost: bcrypt.MinCost},
		auth.WithResetNotifier(auth.AsyncNotifier{Next: next, Runner: runner}))
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"), "must return before delivery")
	close(next.release)
	assert.Equal(t, "a@x.com", <-next.delivered)

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, runner.Close(closeCtx))

	closed := auth.AsyncNotifier{Next: next, Runner: runner}
	assert.Error(t, closed.NotifyPasswordReset(ctx, auth.Identity{}, "t"), "closed runner rejects deliveries")
}

// lookupCountingStore counts account lookups by email
type lookupCountingStore struct {
	auth.Store
	lookups atomic.Int32
}

func (s *lookupCountingStore) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	s.lookups.Add(1)
	return s.Store.GetAccountByEmail(ctx, email)
}

func TestForgotPassword_SingleAccountLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", auth.RoleMusician)

	store := &lookupCountingStore{Store: f.store}
	notifier := &captureNotifier{}
	svc, err := auth.NewService(store, auth.Config{BcryptCost: bcrypt.MinCost},
		auth.WithResetNotifier(notifier),
		auth.WithLogger(observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})),
	)
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	assert.Equal(t, int32(1), store.lookups.Load(), "known email")

	store.lookups.Store(0)
	require.NoError(t, svc.ForgotPassword(ctx, "ghost@x.com"))
	assert.Equal(t, int32(1), store.lookups.Load(), "unknown email")
}
