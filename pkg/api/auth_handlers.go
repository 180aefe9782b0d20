package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cantor/pkg/httputil"
	"github.com/platinummonkey/cantor/pkg/middleware"
)

// AuthHandlers serves login, logout, session introspection and the
// password-reset flow
type AuthHandlers struct {
	service   AuthService
	authMW    *middleware.AuthMiddleware
	rateLimit func(http.Handler) http.Handler
}

// NewAuthHandlers creates auth handlers. rateLimit wraps the
// unauthenticated credential endpoints; nil disables limiting.
func NewAuthHandlers(service AuthService, authMW *middleware.AuthMiddleware, rateLimit func(http.Handler) http.Handler) *AuthHandlers {
	if rateLimit == nil {
		rateLimit = func(next http.Handler) http.Handler { return next }
	}
	return &AuthHandlers{
		service:   service,
		authMW:    authMW,
		rateLimit: rateLimit,
	}
}

// RegisterRoutes registers authentication routes on a router rooted at
// /api/auth
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/login", h.rateLimit(http.HandlerFunc(h.login))).Methods(http.MethodPost)
	router.Handle("/forgot-password", h.rateLimit(http.HandlerFunc(h.forgotPassword))).Methods(http.MethodPost)
	router.Handle("/reset-password", h.rateLimit(http.HandlerFunc(h.resetPassword))).Methods(http.MethodPost)

	router.Handle("/logout", h.authMW.Handler(http.HandlerFunc(h.logout))).Methods(http.MethodPost)
	router.Handle("/me", h.authMW.Handler(http.HandlerFunc(h.me))).Methods(http.MethodGet)
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, LoginResponse{
		User:    result.Identity,
		Token:   result.Token,
		Message: MsgLoginSuccess,
	})
}

// logout handles POST /api/auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if err := h.service.Logout(r.Context(), authCtx.Token); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, MsgLogoutSuccess)
}

// me handles GET /api/auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	httputil.WriteSuccess(w, MeResponse{User: authCtx.Identity})
}

// forgotPassword handles POST /api/auth/forgot-password. The response does
// not depend on whether the email belongs to an account.
func (h *AuthHandlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, MsgForgotPassword)
}

// resetPassword handles POST /api/auth/reset-password
func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, MsgPasswordReset)
}
