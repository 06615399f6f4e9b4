package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// ProfileUpdateRequest payload; omitted fields are left unchanged.
type ProfileUpdateRequest struct {
	FirstName         *string  `json:"firstName"`
	LastName          *string  `json:"lastName"`
	PhoneNumber       *string  `json:"phoneNumber"`
	Specialization    *string  `json:"specialization"`
	Department        *string  `json:"department"`
	LicenseNumber     *string  `json:"licenseNumber"`
	YearsOfExperience *int     `json:"yearsOfExperience"`
	Certifications    []string `json:"certifications"`
}

// Validate checks shape and converts to a domain update.
func (r *ProfileUpdateRequest) Validate() (domain.ProfileUpdate, error) {
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return domain.ProfileUpdate{}, errorutil.NewValidationError("First name cannot be empty", nil)
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return domain.ProfileUpdate{}, errorutil.NewValidationError("Last name cannot be empty", nil)
	}
	if r.YearsOfExperience != nil && *r.YearsOfExperience < 0 {
		return domain.ProfileUpdate{}, errorutil.NewValidationError("Years of experience must be a positive number", nil)
	}
	return domain.ProfileUpdate{
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		PhoneNumber:       r.PhoneNumber,
		Specialization:    r.Specialization,
		Department:        r.Department,
		LicenseNumber:     r.LicenseNumber,
		YearsOfExperience: r.YearsOfExperience,
		Certifications:    r.Certifications,
	}, nil
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Validate checks shape.
func (r *PasswordChangeRequest) Validate() error {
	if r.CurrentPassword == "" {
		return errorutil.NewValidationError("Current password is required", nil)
	}
	if r.NewPassword == "" {
		return errorutil.NewValidationError("New password is required", nil)
	}
	return checkLength(r.NewPassword)
}

// ProfileResponse is the profile view returned to its owner.
type ProfileResponse struct {
	ID                string      `json:"id"`
	Email             string      `json:"email"`
	FirstName         string      `json:"firstName"`
	LastName          string      `json:"lastName"`
	Role              domain.Role `json:"role"`
	PhoneNumber       *string     `json:"phoneNumber,omitempty"`
	Specialization    *string     `json:"specialization,omitempty"`
	Department        *string     `json:"department,omitempty"`
	LicenseNumber     *string     `json:"licenseNumber,omitempty"`
	YearsOfExperience *int        `json:"yearsOfExperience,omitempty"`
	Certifications    []string    `json:"certifications,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// NewProfileResponse flattens a profile.
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	u := p.User
	out := ProfileResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		PhoneNumber:    u.PhoneNumber,
		Specialization: u.Specialization,
		Department:     u.Department,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if m := p.Medical; m != nil {
		out.LicenseNumber = m.LicenseNumber
		out.YearsOfExperience = m.YearsOfExperience
		out.Certifications = m.Certifications
	}
	return out
}
