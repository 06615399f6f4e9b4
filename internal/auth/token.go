package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// SessionTTL is the fixed lifetime of every session token.
const SessionTTL = 24 * time.Hour

// ErrInvalidToken is returned for every token that fails verification.
var ErrInvalidToken = errorutil.ErrInvalidToken

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, logger *zap.Logger) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{secret: []byte(secret), logger: logger, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Claims describes JWT payload.
type Claims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a session token for identity.
func (tm *TokenManager) Issue(identity domain.Identity) (domain.Token, error) {
	if _, err := domain.NewIdentity(identity.SubjectID, identity.Email, identity.Role); err != nil {
		return domain.Token{}, err
	}

	issuedAt := tm.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(SessionTTL)
	claims := &Claims{
		UserID: identity.SubjectID,
		Email:  identity.Email,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.SubjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{Value: signed, Identity: identity, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify checks signature then expiry. Every failure yields ErrInvalidToken; the
// cause is only logged.
func (tm *TokenManager) Verify(tokenStr string) (*domain.Token, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		tm.logger.Debug("token rejected", zap.String("reason", rejectReason(err)), zap.Error(err))
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.IssuedAt == nil {
		tm.logger.Debug("token rejected", zap.String("reason", "claims"))
		return nil, ErrInvalidToken
	}

	identity, err := domain.NewIdentity(claims.UserID, claims.Email, claims.Role)
	if err != nil || identity.SubjectID != claims.Subject {
		tm.logger.Debug("token rejected", zap.String("reason", "identity"))
		return nil, ErrInvalidToken
	}

	return &domain.Token{
		Value:     tokenStr,
		Identity:  identity,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	default:
		return "invalid"
	}
}
