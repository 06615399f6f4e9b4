package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

func seedUser(t *testing.T, store *memoryUsers, role domain.Role) domain.Identity {
	t.Helper()
	u, err := store.Create(context.Background(), repository.NewUser{Email: string(role) + "@b.com", PasswordHash: "h", Role: role, FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	identity, err := domain.IdentityOf(u)
	require.NoError(t, err)
	return identity
}

func TestProfileService_UpdateMedicalRole(t *testing.T) {
	store := newMemoryUsers()
	svc := NewProfileService(store, nil, 0)
	doctor := seedUser(t, store, domain.RoleDoctor)

	license, years := "LIC-9", 12
	phone := "555-0100"
	profile, err := svc.Update(context.Background(), doctor, domain.ProfileUpdate{
		PhoneNumber:       &phone,
		LicenseNumber:     &license,
		YearsOfExperience: &years,
		Certifications:    []string{"BLS"},
	})
	require.NoError(t, err)
	require.NotNil(t, profile.Medical)
	assert.Equal(t, "LIC-9", *profile.Medical.LicenseNumber)
	assert.Equal(t, 12, *profile.Medical.YearsOfExperience)
	assert.Equal(t, "555-0100", *profile.User.PhoneNumber)
}

func TestProfileService_AdminIgnoresMedicalFields(t *testing.T) {
	store := newMemoryUsers()
	svc := NewProfileService(store, nil, 0)
	admin := seedUser(t, store, domain.RoleAdmin)

	license := "LIC-1"
	first := "Root"
	profile, err := svc.Update(context.Background(), admin, domain.ProfileUpdate{FirstName: &first, LicenseNumber: &license})
	require.NoError(t, err)
	assert.Nil(t, profile.Medical)
	assert.Equal(t, "Root", profile.User.FirstName)
}

func TestProfileService_Get(t *testing.T) {
	store := newMemoryUsers()
	svc := NewProfileService(store, nil, 0)
	staff := seedUser(t, store, domain.RoleStaff)

	profile, err := svc.Get(context.Background(), staff)
	require.NoError(t, err)
	assert.Equal(t, staff.Email, profile.User.Email)

	_, err = svc.Get(context.Background(), domain.Identity{SubjectID: "missing", Email: "x@y.z", Role: domain.RoleStaff})
	require.Error(t, err)
	assert.Equal(t, errorutil.CodeNotFound, errorutil.ToDomainError(err).Code)
}
