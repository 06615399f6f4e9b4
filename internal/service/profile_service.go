package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// ProfileStore reads and writes user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, role domain.Role, upd domain.ProfileUpdate) (*domain.Profile, error)
}

// ProfileService serves the authenticated profile endpoints.
type ProfileService struct {
	store   ProfileStore
	logger  *zap.Logger
	timeout time.Duration
}

// NewProfileService builds the service.
func NewProfileService(store ProfileStore, logger *zap.Logger, timeout time.Duration) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{store: store, logger: logger, timeout: timeout}
}

// Get returns the caller's profile.
func (s *ProfileService) Get(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	profile, err := s.store.GetProfile(ctx, identity.SubjectID)
	return profile, s.finish("get_profile", err)
}

// Update applies upd to the caller's profile. Medical fields are ignored for roles
// without a medical profile.
func (s *ProfileService) Update(ctx context.Context, identity domain.Identity, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if !identity.Role.HasMedicalProfile() {
		upd.LicenseNumber = nil
		upd.YearsOfExperience = nil
		upd.Certifications = nil
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	profile, err := s.store.UpdateProfile(ctx, identity.SubjectID, identity.Role, upd)
	return profile, s.finish("update_profile", err)
}

func (s *ProfileService) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *ProfileService) finish(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound("profile", nil)
	}
	return errorutil.Boundary(s.logger, op, err)
}
