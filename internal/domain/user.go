package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates the account roles known to the platform.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
	RoleStaff  Role = "staff"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("invalid role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleStaff:
		return true
	default:
		return false
	}
}

// HasMedicalProfile reports whether accounts with this role keep a medical_staff record.
func (r Role) HasMedicalProfile() bool {
	return r == RoleDoctor || r == RoleStaff
}

// NormalizeEmail lower-cases and trims an address so uniqueness checks are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is the credential record plus the profile columns stored alongside it.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             Role
	FirstName        string
	LastName         string
	PhoneNumber      *string
	Specialization   *string
	Department       *string
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPendingReset reports whether a reset token is currently stored for the user.
func (u *User) HasPendingReset() bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil
}

// MedicalProfile holds the extra fields kept for doctors and staff.
type MedicalProfile struct {
	LicenseNumber     *string
	YearsOfExperience *int
	Certifications    []string
}

// Profile is the read model returned to authenticated callers.
type Profile struct {
	User    *User
	Medical *MedicalProfile
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName         *string
	LastName          *string
	PhoneNumber       *string
	Specialization    *string
	Department        *string
	LicenseNumber     *string
	YearsOfExperience *int
	Certifications    []string
}
