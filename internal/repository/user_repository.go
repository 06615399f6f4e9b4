package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

var (
	// ErrNotFound is returned when no row matches, including conditional updates
	// whose guard did not hold.
	ErrNotFound = errors.New("repository: not found")
	// ErrEmailTaken is returned when the unique email index rejects an insert.
	ErrEmailTaken = errors.New("repository: email already exists")
)

// DB is the subset of pgxpool.Pool used by repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewUser is the data needed to insert a credential record.
type NewUser struct {
	Email        string
	PasswordHash string
	Role         domain.Role
	FirstName    string
	LastName     string
}

// ResetTokenState is a stored reset token hash and its expiry.
type ResetTokenState struct {
	Hash      string
	ExpiresAt time.Time
}

// CredentialUpdate describes a change to password and reset-token fields applied in
// one statement. When Guard is set the update only happens if the stored reset
// token still equals Guard.Hash and has not expired at Guard.ExpiresAt.
type CredentialUpdate struct {
	PasswordHash    *string
	ResetToken      *ResetTokenState
	ClearResetToken bool
	Guard           *ResetTokenState
}

// UserRepository persists credential records and profiles.
type UserRepository struct {
	db DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, role, first_name, last_name, phone_number,
        specialization, department, reset_token_hash, reset_token_expires, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
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
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}

// FindByEmail looks a user up by case-insensitive email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, domain.NormalizeEmail(email)))
	if err != nil {
		return nil, mapErr("find user by email", err)
	}
	return user, nil
}

// FindByID looks a user up by id; malformed ids are reported as not found.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr("find user by id", err)
	}
	return user, nil
}

// FindByResetTokenHash returns the user holding the given reset token hash.
func (r *UserRepository) FindByResetTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		return nil, mapErr("find user by reset token", err)
	}
	return user, nil
}

// Create inserts a new credential record.
func (r *UserRepository) Create(ctx context.Context, in NewUser) (*domain.User, error) {
	query := `
        INSERT INTO users (id, email, password_hash, role, first_name, last_name)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		uuid.NewString(),
		domain.NormalizeEmail(in.Email),
		in.PasswordHash,
		string(in.Role),
		in.FirstName,
		in.LastName,
	))
	if err != nil {
		return nil, mapErr("create user", err)
	}
	return user, nil
}

// UpdateCredential applies upd to user id in a single conditional UPDATE.
func (r *UserRepository) UpdateCredential(ctx context.Context, id string, upd CredentialUpdate) (*domain.User, error) {
	var (
		sets  []string
		where = []string{"id = $1"}
		args  = []any{id}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = "+arg(*upd.PasswordHash))
	}
	switch {
	case upd.ResetToken != nil:
		sets = append(sets,
			"reset_token_hash = "+arg(upd.ResetToken.Hash),
			"reset_token_expires = "+arg(upd.ResetToken.ExpiresAt))
	case upd.ClearResetToken:
		sets = append(sets, "reset_token_hash = NULL", "reset_token_expires = NULL")
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("update credential: nothing to update")
	}
	sets = append(sets, "updated_at = NOW()")

	if upd.Guard != nil {
		where = append(where,
			"reset_token_hash = "+arg(upd.Guard.Hash),
			"reset_token_expires >= "+arg(upd.Guard.ExpiresAt))
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE ` + strings.Join(where, " AND ") +
		` RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapErr("update credential", err)
	}
	return user, nil
}

func mapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrEmailTaken
	}
	err = fmt.Errorf("%s: %w", op, err)
	if unreachable(err) {
		return errorutil.NewStoreUnavailable(err)
	}
	return err
}

// unreachable reports connection and timeout failures; anything else is a fault in
// the query or its scan targets.
func unreachable(err error) bool {
	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)
	return errorutil.IsTimeout(err) || pgconn.Timeout(err) ||
		errors.As(err, &connectErr) || errors.As(err, &netErr)
}
