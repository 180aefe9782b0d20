package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for transport mapping
type Kind int

const (
	KindInternal       Kind = iota // Storage or connectivity failure
	KindValidation                 // Malformed or missing input
	KindAuthentication             // Missing, invalid or expired credentials
	KindAuthorization              // Valid identity lacking the required role
	KindConflict                   // Duplicate email
	KindNotFound                   // Unknown account
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is the error type returned by the auth service. Message is safe to
// show to clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so the
// sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Sentinel errors. Messages are part of the API contract.
var (
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Message: "invalid credentials"}
	ErrAccountDeactivated = &Error{Kind: KindAuthentication, Message: "account is deactivated"}
	ErrInvalidSession     = &Error{Kind: KindAuthentication, Message: "invalid or expired token"}
	ErrInvalidResetToken  = &Error{Kind: KindValidation, Message: "invalid or expired reset token"}
	ErrEmailInUse         = &Error{Kind: KindConflict, Message: "email already in use"}
	ErrAccountNotFound    = &Error{Kind: KindNotFound, Message: "account not found"}
	ErrSelfDeactivation   = &Error{Kind: KindValidation, Message: "cannot delete your own account"}
)

// Storage-level sentinels returned by repositories.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateEmail = errors.New("duplicate email")
)

// ValidationError builds a KindValidation error with a client-facing message.
func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InternalError wraps a storage or runtime failure. The client only ever
// sees the generic message.
func InternalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
