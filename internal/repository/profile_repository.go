package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

const medicalColumns = `ms.license_number, ms.years_of_experience, ms.certifications, ms.user_id IS NOT NULL`

// GetProfile returns the user together with its medical record when one exists.
func (r *UserRepository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `
        SELECT u.id, u.email, u.password_hash, u.role, u.first_name, u.last_name, u.phone_number,
               u.specialization, u.department, u.reset_token_hash, u.reset_token_expires,
               u.created_at, u.updated_at, ` + medicalColumns + `
        FROM users u
        LEFT JOIN medical_staff ms ON ms.user_id = u.id
        WHERE u.id = $1`

	var (
		user       domain.User
		role       string
		medical    domain.MedicalProfile
		hasMedical bool
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.FirstName,
		&user.LastName,
		&user.PhoneNumber,
		&user.Specialization,
		&user.Department,
		&user.ResetTokenHash,
		&user.ResetTokenExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
		&medical.LicenseNumber,
		&medical.YearsOfExperience,
		&medical.Certifications,
		&hasMedical,
	)
	if err != nil {
		return nil, mapErr("get profile", err)
	}
	user.Role = domain.Role(role)

	profile := &domain.Profile{User: &user}
	if hasMedical {
		profile.Medical = &medical
	}
	return profile, nil
}

// UpdateProfile applies upd to the users row and, for roles with a medical profile,
// upserts medical_staff in the same transaction.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, role domain.Role, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapErr("begin profile update", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const userQuery = `
        UPDATE users SET
            first_name = COALESCE($2, first_name),
            last_name = COALESCE($3, last_name),
            phone_number = COALESCE($4, phone_number),
            specialization = COALESCE($5, specialization),
            department = COALESCE($6, department),
            updated_at = NOW()
        WHERE id = $1`

	tag, err := tx.Exec(ctx, userQuery, id,
		upd.FirstName, upd.LastName, upd.PhoneNumber, upd.Specialization, upd.Department)
	if err != nil {
		return nil, mapErr("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if role.HasMedicalProfile() {
		if err := upsertMedical(ctx, tx, id, upd); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr("commit profile update", err)
	}
	return r.GetProfile(ctx, id)
}

func upsertMedical(ctx context.Context, tx pgx.Tx, id string, upd domain.ProfileUpdate) error {
	const query = `
        INSERT INTO medical_staff (user_id, license_number, years_of_experience, certifications)
        VALUES ($1, $2, $3, COALESCE($4::text[], '{}'))
        ON CONFLICT (user_id) DO UPDATE SET
            license_number = COALESCE($2, medical_staff.license_number),
            years_of_experience = COALESCE($3, medical_staff.years_of_experience),
            certifications = COALESCE($4::text[], medical_staff.certifications),
            updated_at = NOW()`

	if _, err := tx.Exec(ctx, query, id, upd.LicenseNumber, upd.YearsOfExperience, upd.Certifications); err != nil {
		return mapErr("upsert medical profile", fmt.Errorf("user %s: %w", id, err))
	}
	return nil
}
