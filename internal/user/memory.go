package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository with the same uniqueness
// and soft-delete rules as the postgres schema. Used by tests and local
// tooling.
type MemoryRepository struct {
	mu    sync.Mutex
	users []*User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (m *MemoryRepository) FindActiveByLogin(_ context.Context, login string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := strings.ToLower(login)
	for _, u := range m.users {
		if u.Active() && (strings.ToLower(u.Email) == l || strings.ToLower(u.Username) == l) {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) FindActiveByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Active() && u.ID == id {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) FindActiveByProvider(_ context.Context, provider, providerUID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Active() && u.Provider == provider && u.ProviderUID == providerUID {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) EmailTaken(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emailTaken(email), nil
}

func (m *MemoryRepository) UsernameTaken(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usernameTaken(username), nil
}

func (m *MemoryRepository) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.emailTaken(u.Email):
		return ErrEmailTaken
	case m.usernameTaken(u.Username):
		return ErrUsernameTaken
	case u.Provider != "" && m.providerTaken(u.Provider, u.ProviderUID):
		return ErrProviderTaken
	}

	now := m.now()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users = append(m.users, clone(u))
	return nil
}

// SoftDelete marks the account deleted. It is not part of Repository;
// account deletion has no API surface yet.
func (m *MemoryRepository) SoftDelete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ID == id {
			t := m.now()
			u.DeletedAt = &t
			return true
		}
	}
	return false
}

// Count returns the number of stored rows, deleted ones included.
func (m *MemoryRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *MemoryRepository) emailTaken(email string) bool {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) usernameTaken(username string) bool {
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) providerTaken(provider, uid string) bool {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderUID == uid {
			return true
		}
	}
	return false
}

func clone(u *User) *User {
	c := *u
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
