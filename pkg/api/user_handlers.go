package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/httputil"
	"github.com/platinummonkey/cantor/pkg/middleware"
)

// UserHandlers serves account administration. Every route requires an
// admin session.
type UserHandlers struct {
	service AuthService
	authMW  *middleware.AuthMiddleware
}

// NewUserHandlers creates user administration handlers
func NewUserHandlers(service AuthService, authMW *middleware.AuthMiddleware) *UserHandlers {
	return &UserHandlers{service: service, authMW: authMW}
}

func (h *UserHandlers) admin(fn http.HandlerFunc) http.Handler {
	return h.authMW.Handler(middleware.RequireAdmin(fn))
}

// RegisterRoutes registers user routes on a router rooted at /api/auth
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/users", h.admin(h.listUsers)).Methods(http.MethodGet)
	router.Handle("/users", h.admin(h.createUser)).Methods(http.MethodPost)
	router.Handle("/users/{id}", h.admin(h.updateUser)).Methods(http.MethodPut)
	router.Handle("/users/{id}", h.admin(h.deleteUser)).Methods(http.MethodDelete)
}

// listUsers handles GET /api/auth/users
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []*auth.Account{}
	}
	httputil.WriteSuccess(w, accounts)
}

// createUser handles POST /api/auth/users
func (h *UserHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req.toNewAccount())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, account)
}

// updateUser handles PUT /api/auth/users/{id}
func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), id, req.toPatch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// deleteUser handles DELETE /api/auth/users/{id}. Accounts are deactivated,
// never removed.
func (h *UserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	actor := middleware.GetAuthContext(r)
	if err := h.service.DeactivateAccount(r.Context(), actor.Identity.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, MsgUserDeleted)
}
