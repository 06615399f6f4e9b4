package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// ResetTokenBytes is the entropy of a reset token (256 bits).
	ResetTokenBytes = 32
	// ResetTokenTTL is how long an issued reset token stays valid.
	ResetTokenTTL = time.Hour
)

// ResetToken is the result of issuing a password-reset token. Plaintext is handed
// to the notifier once and never stored.
type ResetToken struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// ResetTokenManager issues and verifies single-use password reset tokens.
type ResetTokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewResetTokenManager builds a manager hashing tokens with secret.
func NewResetTokenManager(secret string) *ResetTokenManager {
	return &ResetTokenManager{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (m *ResetTokenManager) WithClock(now func() time.Time) *ResetTokenManager {
	m.now = now
	return m
}

// Issue generates a fresh token with its storable hash and expiry.
func (m *ResetTokenManager) Issue() (ResetToken, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, fmt.Errorf("generate reset token: %w", err)
	}
	plaintext := hex.EncodeToString(buf)
	return ResetToken{
		Plaintext: plaintext,
		Hash:      m.HashToken(plaintext),
		ExpiresAt: m.now().Add(ResetTokenTTL),
	}, nil
}

// HashToken derives the stored form of a token: hex(sha256(token || secret)).
func (m *ResetTokenManager) HashToken(plaintext string) string {
	h := sha256.New()
	h.Write([]byte(plaintext))
	h.Write(m.secret)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether plaintext matches storedHash and storedExpiry has not passed.
func (m *ResetTokenManager) Verify(plaintext, storedHash string, storedExpiry time.Time) bool {
	if plaintext == "" || storedHash == "" || storedExpiry.IsZero() {
		return false
	}
	if m.now().After(storedExpiry) {
		return false
	}
	computed := m.HashToken(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
