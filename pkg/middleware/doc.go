// Package middleware provides the bearer-token authentication middleware,
// the role gates and the rate limiters used on the credential endpoints.
//
//	authMW := middleware.NewAuthMiddleware(authService, metrics)
//	users := router.PathPrefix("/users").Subrouter()
//	users.Use(authMW.Handler, middleware.RequireAdmin)
//
// Responses:
//
//   - no or malformed Authorization header: 401 "authentication required"
//   - unknown or expired token: 401 "invalid or expired token"
//   - storage failure during validation: 500
//   - authenticated but not admin: 403 "admin access required"
//
// Rate limiting is per client IP, in memory by default or in Redis when
// shared across instances. Redis failures let the request through.
package middleware
