package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

const (
	// PasswordCost is the bcrypt work factor used for every stored hash.
	PasswordCost = 10
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

// BcryptHasher hashes and verifies passwords. Concurrent bcrypt work is capped so
// a burst of logins cannot pin every CPU.
type BcryptHasher struct {
	sem *semaphore.Weighted
}

// NewBcryptHasher builds a hasher allowing maxConcurrent simultaneous hash operations.
func NewBcryptHasher(maxConcurrent int) *BcryptHasher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BcryptHasher{sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Hash produces a salted bcrypt digest of plain.
func (h *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", passwordTooLong()
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", passwordTooLong()
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hashed. Malformed hashes and cancelled
// contexts both report false.
func (h *BcryptHasher) Verify(ctx context.Context, plain, hashed string) bool {
	if hashed == "" {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func passwordTooLong() error {
	return errorutil.NewValidationError(
		fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes),
		map[string]any{"max_bytes": MaxPasswordBytes},
	)
}
