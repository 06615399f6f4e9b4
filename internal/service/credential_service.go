package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// ResetRequestMessage is returned for every reset request, whether or not the
// email belongs to an account.
const ResetRequestMessage = "If the email exists, a reset link will be sent"

// CredentialStore is the user-record store the orchestrator persists through.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*domain.User, error)
	Create(ctx context.Context, in repository.NewUser) (*domain.User, error)
	UpdateCredential(ctx context.Context, id string, upd repository.CredentialUpdate) (*domain.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hashed string) bool
}

// TokenIssuer issues and verifies session tokens.
type TokenIssuer interface {
	Issue(identity domain.Identity) (domain.Token, error)
	Verify(token string) (*domain.Token, error)
}

// ResetTokens issues and verifies password reset tokens.
type ResetTokens interface {
	Issue() (auth.ResetToken, error)
	HashToken(plaintext string) string
	Verify(plaintext, storedHash string, storedExpiry time.Time) bool
}

// Notifier delivers reset tokens and confirmations out of band.
type Notifier interface {
	SendResetToken(ctx context.Context, email, token string) error
	SendResetConfirmation(ctx context.Context, email string) error
}

// AuthObserver records operation outcomes; implemented by observability.Metrics.
type AuthObserver interface {
	ObserveAuth(operation, outcome string)
}

// CredentialDependencies encapsulates the collaborators of CredentialService.
type CredentialDependencies struct {
	Store    CredentialStore
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Resets   ResetTokens
	Notifier Notifier
	Logger   *zap.Logger
	Observer AuthObserver
	// StoreTimeout bounds each store and notifier call.
	StoreTimeout time.Duration
}

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	Token domain.Token
	User  *domain.User
}

// CredentialService implements login, registration, token verification and the
// password reset and change flows.
type CredentialService struct {
	store    CredentialStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	resets   ResetTokens
	notifier Notifier
	logger   *zap.Logger
	observer AuthObserver
	timeout  time.Duration
	now      func() time.Time

	// dummyHash is verified against for unknown emails so both login paths run bcrypt.
	dummyHash string
}

// NewCredentialService builds the service.
func NewCredentialService(deps CredentialDependencies) *CredentialService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CredentialService{
		store:    deps.Store,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		resets:   deps.Resets,
		notifier: deps.Notifier,
		logger:   logger,
		observer: deps.Observer,
		timeout:  deps.StoreTimeout,
		now:      time.Now,
	}
	if s.hasher != nil {
		// Built once, detached from any request, so a cancelled caller cannot leave it empty.
		hash, err := s.hasher.Hash(context.Background(), "timing-equalizer-password")
		if err != nil {
			logger.Warn("dummy hash unavailable", zap.Error(err))
		}
		s.dummyHash = hash
	}
	return s
}

// Login authenticates email and password. Unknown emails and wrong passwords fail
// identically and take comparable time.
func (s *CredentialService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer func() { err = s.finish("login", err) }()

	user, err := s.findByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.hasher.Verify(ctx, password, s.dummyHash)
		return nil, errorutil.AuthFailure(errorutil.InvalidCredentials)
	case err != nil:
		return nil, err
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		return nil, errorutil.AuthFailure(errorutil.InvalidCredentials)
	}
	return s.issue(user)
}

// Register creates an account and returns a session for it.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer func() { err = s.finish("register", err) }()

	if !in.Role.Valid() {
		return nil, errorutil.NewValidationError("Invalid role", nil)
	}
	email := domain.NormalizeEmail(in.Email)

	_, err = s.findByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, emailExists()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	user, err := s.store.Create(sctx, repository.NewUser{
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		return nil, emailExists()
	}
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Verify checks a session token and confirms its subject still exists.
func (s *CredentialService) Verify(ctx context.Context, token string) (identity domain.Identity, err error) {
	defer func() { err = s.finish("verify", err) }()

	verified, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, errorutil.AuthFailure(errorutil.InvalidToken)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	user, err := s.store.FindByID(sctx, verified.Identity.SubjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Identity{}, errorutil.AuthFailure(errorutil.InvalidToken)
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.IdentityOf(user)
}

// RequestPasswordReset issues a reset token for email when it belongs to an
// account. The returned message never reveals which case applied.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, email string) (msg string, err error) {
	defer func() { err = s.finish("password_reset_request", err) }()

	// Token generation runs for unknown emails too so both paths cost the same.
	token, err := s.resets.Issue()
	if err != nil {
		return "", err
	}

	user, err := s.findByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ResetRequestMessage, nil
	}
	if err != nil {
		return "", err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	_, err = s.store.UpdateCredential(sctx, user.ID, repository.CredentialUpdate{
		ResetToken: &repository.ResetTokenState{Hash: token.Hash, ExpiresAt: token.ExpiresAt},
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ResetRequestMessage, nil
	}
	if err != nil {
		return "", err
	}

	s.notify(ctx, "send reset token", user.Email, func(nctx context.Context) error {
		return s.notifier.SendResetToken(nctx, user.Email, token.Plaintext)
	})
	return ResetRequestMessage, nil
}

// ResetPassword consumes a reset token and sets a new password. The token hash is
// cleared in the same statement, guarded on the hash still being present, so a
// token can succeed at most once.
func (s *CredentialService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { err = s.finish("password_reset", err) }()

	invalid := errorutil.AuthFailure(errorutil.InvalidOrExpiredToken)
	if strings.TrimSpace(token) == "" {
		return invalid
	}

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.store.FindByResetTokenHash(sctx, s.resets.HashToken(token))
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}
	if !user.HasPendingReset() || !s.resets.Verify(token, *user.ResetTokenHash, *user.ResetTokenExpiry) {
		return invalid
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}

	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	_, err = s.store.UpdateCredential(sctx, user.ID, repository.CredentialUpdate{
		PasswordHash:    &hash,
		ClearResetToken: true,
		Guard:           &repository.ResetTokenState{Hash: *user.ResetTokenHash, ExpiresAt: s.now()},
	})
	if errors.Is(err, repository.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}

	s.notify(ctx, "send reset confirmation", user.Email, func(nctx context.Context) error {
		return s.notifier.SendResetConfirmation(nctx, user.Email)
	})
	return nil
}

// ChangePassword replaces the password of an authenticated user after checking
// the current one. Any outstanding reset token is discarded.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, current, next string) (err error) {
	defer func() { err = s.finish("password_change", err) }()

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.store.FindByID(sctx, userID)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.AuthFailure(errorutil.InvalidToken)
	}
	if err != nil {
		return err
	}

	if !s.hasher.Verify(ctx, current, user.PasswordHash) {
		return errorutil.AuthFailure(errorutil.InvalidCredentials)
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return err
	}

	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	_, err = s.store.UpdateCredential(sctx, user.ID, repository.CredentialUpdate{PasswordHash: &hash, ClearResetToken: true})
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.AuthFailure(errorutil.InvalidToken)
	}
	return err
}

func (s *CredentialService) issue(user *domain.User) (*AuthResult, error) {
	identity, err := domain.IdentityOf(user)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *CredentialService) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.FindByEmail(sctx, domain.NormalizeEmail(email))
}

func (s *CredentialService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// notify runs a notifier call under the store timeout; failures are logged only.
func (s *CredentialService) notify(ctx context.Context, op, email string, send func(context.Context) error) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := send(nctx); err != nil {
		s.logger.Warn("notifier failed", zap.String("op", op), zap.String("email", email), zap.Error(err))
	}
}

// finish is the orchestration boundary: timeouts become StoreUnavailable, domain
// errors pass through and anything else becomes an InternalError.
func (s *CredentialService) finish(op string, err error) error {
	var domainErr *errorutil.DomainError
	if err != nil && !errors.As(err, &domainErr) && errorutil.IsTimeout(err) {
		err = errorutil.NewStoreUnavailable(err)
	}
	err = errorutil.Boundary(s.logger, op, err)
	if s.observer != nil {
		s.observer.ObserveAuth(op, outcome(err))
	}
	return err
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(errorutil.ToDomainError(err).Code)
}

func emailExists() error {
	return errorutil.NewValidationError("Email already exists", nil)
}
