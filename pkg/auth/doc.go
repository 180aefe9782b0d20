// Package auth provides session-token authentication and account
// administration for the Cantor music-ministry service.
//
// # Overview
//
// Accounts log in with email and password. A successful login opens a
// server-side session identified by an opaque bearer token. The session
// slides: every successful validation pushes its expiry to now+SessionTTL.
// Forgotten passwords are recovered through one-time reset tokens.
//
// Only SHA-256 hashes of tokens are stored. Passwords are bcrypt hashes.
//
// # Roles
//
// Role is a closed set:
//
//	RoleAdmin    - account administration
//	RoleMusician - everything else
//
// Use ParseRole on external input; unknown strings are rejected.
//
// # Usage
//
//	svc, err := auth.NewService(store, auth.Config{SessionTTL: 30 * time.Minute})
//	res, err := svc.Login(ctx, "ana@parish.org", "secret")
//	// res.Token goes to the client, once
//	identity, err := svc.Identity(ctx, res.Token)
//	err = svc.Logout(ctx, res.Token)
//
// Password reset:
//
//	_ = svc.ForgotPassword(ctx, "ana@parish.org") // always nil for known/unknown emails
//	err = svc.ResetPassword(ctx, tokenFromEmail, "new-secret")
//
// ResetPassword changes the password, consumes the token and revokes every
// session of the account in one transaction.
//
// # Errors
//
// Service methods return *Error values classified by Kind. Transport layers
// map kinds to status codes; Message is safe to show to clients.
//
// # Storage
//
// Persistence is behind the Store interface; pkg/storage/sqlstore
// implements it for postgres and sqlite.
package auth
