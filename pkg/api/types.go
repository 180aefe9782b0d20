package api

import "github.com/platinummonkey/cantor/pkg/auth"

// Acknowledgement messages. The forgot-password message is identical for
// known and unknown emails.
const (
	MsgLoginSuccess   = "login successful"
	MsgLogoutSuccess  = "logged out"
	MsgForgotPassword = "if the email exists, you will receive recovery instructions"
	MsgPasswordReset  = "password has been reset"
	MsgUserDeleted    = "user deleted"
)

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	User    auth.Identity `json:"user"`
	Token   string        `json:"token"`
	Message string        `json:"message"`
}

// MeResponse is returned by GET /api/auth/me
type MeResponse struct {
	User auth.Identity `json:"user"`
}

// ForgotPasswordRequest is the body of POST /api/auth/forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /api/auth/reset-password
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// CreateUserRequest is the body of POST /api/auth/users
type CreateUserRequest struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Instrument *string `json:"instrument,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Photo      *string `json:"photo,omitempty"`
}

func (req CreateUserRequest) toNewAccount() auth.NewAccount {
	return auth.NewAccount{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Role:       req.Role,
		Instrument: req.Instrument,
		Phone:      req.Phone,
		Photo:      req.Photo,
	}
}

// UpdateUserRequest is the body of PUT /api/auth/users/{id}. Absent fields
// are left unchanged.
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty"`
	Name        *string `json:"name,omitempty"`
	Role        *string `json:"role,omitempty"`
	Instrument  *string `json:"instrument,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Photo       *string `json:"photo,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	NewPassword *string `json:"newPassword,omitempty"`
}

func (req UpdateUserRequest) toPatch() auth.AccountPatch {
	return auth.AccountPatch{
		Email:       req.Email,
		Name:        req.Name,
		Role:        req.Role,
		Instrument:  req.Instrument,
		Phone:       req.Phone,
		Photo:       req.Photo,
		Active:      req.Active,
		NewPassword: req.NewPassword,
	}
}
