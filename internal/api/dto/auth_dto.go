package dto

import (
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/service"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// Password length bounds; the upper one is where bcrypt stops reading.
const (
	MinPasswordLength = 8
	MaxPasswordLength = auth.MaxPasswordBytes
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks shape and lower-cases the email.
func (r *LoginRequest) Validate() error {
	email, err := validEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email
	if r.Password == "" {
		return errorutil.NewValidationError("Password is required", nil)
	}
	return checkLength(r.Password)
}

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Validate checks shape and returns the service input.
func (r *RegisterRequest) Validate() (service.RegisterInput, error) {
	email, err := validEmail(r.Email)
	if err != nil {
		return service.RegisterInput{}, err
	}
	if r.Password == "" {
		return service.RegisterInput{}, errorutil.NewValidationError("Password is required", nil)
	}
	if err := checkLength(r.Password); err != nil {
		return service.RegisterInput{}, err
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return service.RegisterInput{}, errorutil.NewValidationError("First name is required", nil)
	}
	if strings.TrimSpace(r.LastName) == "" {
		return service.RegisterInput{}, errorutil.NewValidationError("Last name is required", nil)
	}
	role := domain.Role(r.Role)
	if !role.Valid() {
		return service.RegisterInput{}, errorutil.NewValidationError("Valid role is required (admin, doctor, or staff)", nil)
	}
	return service.RegisterInput{
		Email:     email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      role,
	}, nil
}

// PasswordResetRequest payload for initiating a reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// Validate requires a non-empty email. The format is not checked so malformed
// addresses get the same answer as unknown ones.
func (r *PasswordResetRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errorutil.NewValidationError("Valid email is required", nil)
	}
	r.Email = domain.NormalizeEmail(r.Email)
	return nil
}

// PasswordResetConfirmRequest payload for consuming a reset token.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Validate checks shape.
func (r *PasswordResetConfirmRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errorutil.NewValidationError("Valid reset token is required", nil)
	}
	if r.NewPassword == "" {
		return errorutil.NewValidationError("New password is required", nil)
	}
	return checkLength(r.NewPassword)
}

// MessageResponse carries a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary is the account view returned with a session.
type UserSummary struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserSummary `json:"user"`
}

// NewAuthResponse renders a service result.
func NewAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     res.Token.Value,
		ExpiresAt: res.Token.ExpiresAt,
		User: UserSummary{
			ID:        res.User.ID,
			Email:     res.User.Email,
			Role:      res.User.Role,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
		},
	}
}

// VerifyResponse echoes the claims of a valid session.
type VerifyResponse struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
}

func validEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return "", errorutil.NewValidationError("Valid email is required", nil)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", errorutil.NewValidationError("Valid email is required", nil)
	}
	return email, nil
}

func checkLength(password string) error {
	if len(password) < MinPasswordLength {
		return errorutil.NewValidationError("Password must be at least 8 characters", nil)
	}
	if len(password) > MaxPasswordLength {
		return errorutil.NewValidationError("Password must be at most 72 bytes", nil)
	}
	return nil
}
