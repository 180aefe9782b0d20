package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/cantor/pkg/async"
	"github.com/platinummonkey/cantor/pkg/contextkeys"
	"github.com/platinummonkey/cantor/pkg/observability"
)

const tracerName = "github.com/platinummonkey/cantor/pkg/auth"

// ResetNotifier delivers a freshly issued reset token to the account owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, identity Identity, token string) error
}

// LogNotifier writes reset tokens to the debug log. Development only.
type LogNotifier struct {
	Logger *observability.Logger
}

// NotifyPasswordReset implements ResetNotifier
func (n LogNotifier) NotifyPasswordReset(ctx context.Context, identity Identity, token string) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.WithFields(map[string]interface{}{
		"account_id":  identity.ID,
		"email":       identity.Email,
		"reset_token": token,
	}).Debug("password reset token issued")
	return nil
}

// AsyncNotifier hands reset deliveries to a background runner so the
// forgot-password response does not wait on, or reveal, delivery.
type AsyncNotifier struct {
	Next   ResetNotifier
	Runner *async.Runner
}

// NotifyPasswordReset implements ResetNotifier
func (n AsyncNotifier) NotifyPasswordReset(ctx context.Context, identity Identity, token string) error {
	if !n.Runner.Go(ctx, "password reset notification", func(ctx context.Context) error {
		return n.Next.NotifyPasswordReset(ctx, identity, token)
	}) {
		return errors.New("notification runner closed")
	}
	return nil
}

// Service implements the login, logout and password-reset flows plus account
// administration.
type Service struct {
	store       Store
	hasher      *PasswordHasher
	Sessions    *SessionManager
	ResetTokens *ResetTokenManager
	notifier    ResetNotifier
	audit       *AuditLogger
	logger      *observability.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	tracer      trace.Tracer

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures a Service
type Option func(*Service)

// WithResetNotifier sets the reset token delivery channel.
func WithResetNotifier(n ResetNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithAuditLogger enables security audit events.
func WithAuditLogger(a *AuditLogger) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics records login and password-reset outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates the auth service over store
func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	applyDefaults(&cfg)
	hasher, err := NewPasswordHasher(cfg.BcryptCost, cfg.MinPasswordLength)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:       store,
		hasher:      hasher,
		Sessions:    NewSessionManager(store, cfg),
		ResetTokens: NewResetTokenManager(store, cfg),
		now:         cfg.Now,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	return s, nil
}

// Hasher returns the password hasher used by the service.
func (s *Service) Hasher() *PasswordHasher {
	return s.hasher
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && KindOf(err) == KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, span := s.startSpan(ctx, "auth.Login")
	defer func() {
		s.metrics.RecordLogin(ctx, loginOutcome(err))
		endSpan(span, err)
	}()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ValidationError("email and password are required")
	}

	account, err := s.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrRecordNotFound) {
		// Burn a comparison so unknown emails cost the same as bad passwords
		s.hasher.Verify(password, s.dummy())
		s.record(ctx, AuditEvent{Action: ActionLogin, Email: email, Status: StatusFailure, Err: ErrInvalidCredentials})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, InternalError("load account", err)
	}

	if !account.Active {
		s.record(ctx, AuditEvent{Action: ActionLogin, AccountID: account.ID, Email: email, Status: StatusDenied, Err: ErrAccountDeactivated})
		return nil, ErrAccountDeactivated
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		s.record(ctx, AuditEvent{Action: ActionLogin, AccountID: account.ID, Email: email, Status: StatusFailure, Err: ErrInvalidCredentials})
		return nil, ErrInvalidCredentials
	}

	token, err := s.Sessions.Create(ctx, account.ID)
	if err != nil {
		return nil, InternalError("create session", err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID))
	s.record(ctx, AuditEvent{Action: ActionLogin, AccountID: account.ID, Email: email, Status: StatusSuccess})
	return &LoginResult{Identity: account.Identity(), Token: token}, nil
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return observability.LoginSuccess
	case errors.Is(err, ErrAccountDeactivated):
		return observability.LoginDeactivated
	case KindOf(err) == KindInternal:
		return observability.LoginError
	default:
		return observability.LoginInvalidCredentials
	}
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("cantor-dummy-password")
	})
	return s.dummyHash
}

// Logout revokes the session for token. Revoking an unknown token succeeds.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.Logout")
	defer func() { endSpan(span, err) }()

	if err := s.Sessions.Revoke(ctx, token); err != nil {
		return InternalError("revoke session", err)
	}
	s.record(ctx, AuditEvent{Action: ActionLogout, ActorID: observability.GetUserID(ctx), Status: StatusSuccess})
	return nil
}

// Identity resolves token to its identity, sliding the session forward.
// An unknown or expired token yields ErrInvalidSession.
func (s *Service) Identity(ctx context.Context, token string) (identity Identity, err error) {
	ctx, span := s.startSpan(ctx, "auth.Identity")
	defer func() { endSpan(span, err) }()

	identity, ok, err := s.Sessions.Validate(ctx, token)
	if err != nil {
		return Identity{}, InternalError("validate session", err)
	}
	if !ok {
		return Identity{}, ErrInvalidSession
	}
	return identity, nil
}

// ForgotPassword issues a reset token for email and hands it to the
// notifier. Only a missing email is reported; every other outcome,
// including storage failures, returns nil so callers cannot tell whether
// the account exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.ForgotPassword")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return ValidationError("email is required")
	}

	token, account, issueErr := s.ResetTokens.Issue(ctx, email)
	if issueErr != nil {
		s.metrics.RecordPasswordReset(resetStageRequested, "error")
		s.logger.WithError(issueErr).Error("forgot password: issue reset token")
		s.record(ctx, AuditEvent{Action: ActionResetRequested, Email: email, Status: StatusFailure, Err: issueErr})
		return nil
	}
	if account == nil {
		s.metrics.RecordPasswordReset(resetStageRequested, "unknown_email")
		s.record(ctx, AuditEvent{Action: ActionResetRequested, Email: email, Status: StatusDenied})
		return nil
	}

	if notifyErr := s.notifier.NotifyPasswordReset(ctx, account.Identity(), token); notifyErr != nil {
		s.logger.WithError(notifyErr).WithField("account_id", account.ID).Error("forgot password: notify")
	}
	s.metrics.RecordPasswordReset(resetStageRequested, "issued")
	s.record(ctx, AuditEvent{Action: ActionResetRequested, AccountID: account.ID, Email: email, Status: StatusSuccess})
	return nil
}

// ResetPassword sets a new password using a reset token. The password
// write, the token consumption and the revocation of every session of the
// account commit together; on any failure the token remains usable.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.ResetPassword")
	defer func() {
		s.metrics.RecordPasswordReset(resetStageCompleted, resetOutcome(err))
		endSpan(span, err)
	}()

	if token == "" || newPassword == "" {
		return ValidationError("token and new password are required")
	}
	if err := s.hasher.CheckPolicy(newPassword); err != nil {
		return err
	}

	accountID, ok, err := s.ResetTokens.Validate(ctx, token)
	if err != nil {
		return InternalError("validate reset token", err)
	}
	if !ok {
		s.record(ctx, AuditEvent{Action: ActionResetCompleted, Status: StatusFailure, Err: ErrInvalidResetToken})
		return ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return InternalError("hash password", err)
	}

	err = s.store.InTx(ctx, func(tx Repository) error {
		if err := tx.SetPassword(ctx, accountID, hash, s.now()); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if err := s.ResetTokens.consume(ctx, tx, token); err != nil {
			return err
		}
		if _, err := revokeAll(ctx, tx, accountID); err != nil {
			return err
		}
		return nil
	})
	if errors.Is(err, ErrInvalidResetToken) {
		// Lost a race with a concurrent reset using the same token
		s.record(ctx, AuditEvent{Action: ActionResetCompleted, AccountID: accountID, Status: StatusFailure, Err: err})
		return ErrInvalidResetToken
	}
	if errors.Is(err, ErrRecordNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return InternalError("reset password", err)
	}

	s.record(ctx, AuditEvent{Action: ActionResetCompleted, AccountID: accountID, Status: StatusSuccess})
	return nil
}

const (
	resetStageRequested = "requested"
	resetStageCompleted = "completed"
)

func resetOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidResetToken):
		return "invalid_token"
	case KindOf(err) == KindInternal:
		return "error"
	default:
		return "rejected"
	}
}

func (s *Service) record(ctx context.Context, event AuditEvent) {
	if event.IPAddress == "" {
		event.IPAddress = contextkeys.GetClientIP(ctx)
	}
	s.audit.Record(ctx, event)
}
