package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/contextkeys"
	"github.com/platinummonkey/cantor/pkg/httputil"
	"github.com/platinummonkey/cantor/pkg/observability"
)

// Response messages of the auth middleware and gates
const (
	MsgAuthRequired  = "authentication required"
	MsgInvalidToken  = "invalid or expired token"
	MsgAdminRequired = "admin access required"
)

// SessionValidator resolves a bearer token. It returns auth.ErrInvalidSession
// for unknown or expired tokens; any other error is a storage failure.
type SessionValidator interface {
	Identity(ctx context.Context, token string) (auth.Identity, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	sessions SessionValidator
	metrics  *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware. metrics may be
// nil.
func NewAuthMiddleware(sessions SessionValidator, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		metrics:  metrics,
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>". A
// missing or malformed header yields ok=false.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// Handler wraps an HTTP handler with authentication. Validation slides the
// session expiry forward.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := BearerToken(r)
		if !ok {
			m.metrics.RecordSessionValidation(ctx, observability.SessionMissing)
			httputil.WriteUnauthorized(w, MsgAuthRequired)
			return
		}

		identity, err := m.sessions.Identity(ctx, token)
		if errors.Is(err, auth.ErrInvalidSession) {
			m.metrics.RecordSessionValidation(ctx, observability.SessionInvalid)
			httputil.WriteUnauthorized(w, MsgInvalidToken)
			return
		}
		if err != nil {
			m.metrics.RecordSessionValidation(ctx, observability.SessionError)
			observability.FromContext(ctx).WithError(err).Error("session validation failed")
			httputil.WriteInternalError(w)
			return
		}
		m.metrics.RecordSessionValidation(ctx, observability.SessionValid)

		authCtx := &auth.AuthContext{
			Identity: identity,
			Token:    token,
		}
		ctx = contextkeys.WithAuth(ctx, authCtx)
		ctx = contextkeys.WithUserID(ctx, identity.ID)
		ctx = observability.WithLogger(ctx, observability.GetLogger(ctx).WithField("user_id", identity.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, _ := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	return authCtx
}

// RequireRole creates middleware that only admits identities holding role.
// It must run after AuthMiddleware.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, MsgAuthRequired)
				return
			}

			if !authCtx.HasRole(role) {
				httputil.WriteForbidden(w, forbiddenMessage(role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits only admins
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(auth.RoleAdmin)(next)
}

func forbiddenMessage(role auth.Role) string {
	if role == auth.RoleAdmin {
		return MsgAdminRequired
	}
	return "insufficient role permissions"
}
