package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
)

// memoryUsers is an in-memory CredentialStore and ProfileStore honouring the same
// guard semantics as the Postgres repository.
type memoryUsers struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	medical  map[string]*domain.MedicalProfile
	failWith error
	block    bool
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*domain.User{}, medical: map[string]*domain.MedicalProfile{}}
}

func (m *memoryUsers) fail(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.failWith
}

func clone(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == domain.NormalizeEmail(email) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return clone(u), nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) FindByResetTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == hash {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) Create(ctx context.Context, in repository.NewUser) (*domain.User, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == in.Email {
			return nil, repository.ErrEmailTaken
		}
	}
	now := time.Now()
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return clone(u), nil
}

func (m *memoryUsers) UpdateCredential(ctx context.Context, id string, upd repository.CredentialUpdate) (*domain.User, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if g := upd.Guard; g != nil {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != g.Hash || u.ResetTokenExpiry.Before(g.ExpiresAt) {
			return nil, repository.ErrNotFound
		}
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	switch {
	case upd.ResetToken != nil:
		h, exp := upd.ResetToken.Hash, upd.ResetToken.ExpiresAt
		u.ResetTokenHash, u.ResetTokenExpiry = &h, &exp
	case upd.ClearResetToken:
		u.ResetTokenHash, u.ResetTokenExpiry = nil, nil
	}
	return clone(u), nil
}

func (m *memoryUsers) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	u, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.Profile{User: u, Medical: m.medical[id]}, nil
}

func (m *memoryUsers) UpdateProfile(ctx context.Context, id string, role domain.Role, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	u, ok := m.users[id]
	if !ok {
		m.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.PhoneNumber != nil {
		u.PhoneNumber = upd.PhoneNumber
	}
	if upd.Department != nil {
		u.Department = upd.Department
	}
	if upd.Specialization != nil {
		u.Specialization = upd.Specialization
	}
	if role.HasMedicalProfile() {
		mp := m.medical[id]
		if mp == nil {
			mp = &domain.MedicalProfile{}
			m.medical[id] = mp
		}
		if upd.LicenseNumber != nil {
			mp.LicenseNumber = upd.LicenseNumber
		}
		if upd.YearsOfExperience != nil {
			mp.YearsOfExperience = upd.YearsOfExperience
		}
		if upd.Certifications != nil {
			mp.Certifications = upd.Certifications
		}
	}
	m.mu.Unlock()
	return m.GetProfile(ctx, id)
}

type sentMail struct {
	kind, email, token string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendResetToken(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "token", email: email, token: token})
	return n.err
}

func (n *recordingNotifier) SendResetConfirmation(_ context.Context, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "confirmation", email: email})
	return n.err
}

func (n *recordingNotifier) last() (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMail{}, false
	}
	return n.sent[len(n.sent)-1], true
}

var errUnexpected = errors.New("unexpected driver failure")
