package domain

import (
	"errors"
	"strings"
	"time"
)

// Identity is the set of claims embedded in every session token.
type Identity struct {
	SubjectID string
	Email     string
	Role      Role
}

// NewIdentity validates and builds an Identity.
func NewIdentity(subjectID, email string, role Role) (Identity, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Identity{}, errors.New("subject id required")
	}
	if strings.TrimSpace(email) == "" {
		return Identity{}, errors.New("email required")
	}
	if !role.Valid() {
		return Identity{}, errors.New("invalid role")
	}
	return Identity{SubjectID: subjectID, Email: email, Role: role}, nil
}

// IdentityOf extracts the claims for a stored user.
func IdentityOf(u *User) (Identity, error) {
	return NewIdentity(u.ID, u.Email, u.Role)
}

// Token represents issued session token metadata.
type Token struct {
	Value     string
	Identity  Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}
