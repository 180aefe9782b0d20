// Package api exposes Cantor's authentication service over JSON/HTTP.
//
// Routes live under /api/auth:
//
//	POST   /login            {email, password} -> {user, token, message}
//	POST   /logout           bearer
//	GET    /me               bearer -> {user}
//	POST   /forgot-password  {email}; same acknowledgement for every email
//	POST   /reset-password   {token, newPassword}
//	GET    /users            admin
//	POST   /users            admin -> 201 account
//	PUT    /users/{id}       admin, partial update
//	DELETE /users/{id}       admin, deactivates the account
//
// Errors are returned as {"error": "..."} with the status derived from the
// auth error kind. Internal failures are logged and reported only as
// "internal server error".
//
// Server wraps the router with request ids, access logging, panic recovery,
// CORS, request timeouts, body limits and OpenTelemetry spans. OpsRoutes
// adds /healthz, /readyz and /metrics, either on the API router or on a
// separate listener built with NewOpsRouter.
package api
