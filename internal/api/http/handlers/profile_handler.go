package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// Profiles reads and updates the caller's profile.
type Profiles interface {
	Get(ctx context.Context, identity domain.Identity) (*domain.Profile, error)
	Update(ctx context.Context, identity domain.Identity, upd domain.ProfileUpdate) (*domain.Profile, error)
}

// ProfileHandler exposes the authenticated profile endpoints.
type ProfileHandler struct {
	profiles    Profiles
	credentials Credentials
}

// NewProfileHandler constructs handler.
func NewProfileHandler(profiles Profiles, credentials Credentials) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, credentials: credentials}
}

// Get handles GET /profile.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	profile, err := h.profiles.Get(c.UserContext(), principal.Identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// Update handles PUT /profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	upd, err := req.Validate()
	if err != nil {
		return err
	}

	profile, err := h.profiles.Update(c.UserContext(), principal.Identity, upd)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// ChangePassword handles POST /profile/password.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := h.credentials.ChangePassword(c.UserContext(), principal.Identity.SubjectID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "Password changed successfully"}})
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, errorutil.AuthFailure(errorutil.InvalidToken)
	}
	return p, nil
}
