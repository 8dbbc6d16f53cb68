// Package user holds the account model and its storage.
package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("user: not found")
	ErrEmailTaken    = errors.New("user: email already taken")
	ErrUsernameTaken = errors.New("user: username already taken")
	ErrProviderTaken = errors.New("user: provider identity already linked")
)

// User is a RiffTube account. Provider and ProviderUID are both empty for
// local-only accounts. DeletedAt marks a soft-deleted account.
type User struct {
	ID           string
	Email        string
	Username     string
	Name         string
	PasswordHash string
	Provider     string
	ProviderUID  string
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.DeletedAt == nil
}

// Public is the JSON shape returned to clients.
type Public struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
}

func (u *User) Public() Public {
	return Public{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
	}
}

// Repository is user storage. Every Find* method only considers active
// accounts; the *Taken checks include soft-deleted ones because deleted
// rows still hold their email and username.
type Repository interface {
	// FindActiveByLogin matches login case-insensitively against email or username.
	FindActiveByLogin(ctx context.Context, login string) (*User, error)
	FindActiveByID(ctx context.Context, id string) (*User, error)
	FindActiveByProvider(ctx context.Context, provider, providerUID string) (*User, error)

	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)

	// Create assigns ID and timestamps. Unique violations come back as
	// ErrEmailTaken, ErrUsernameTaken or ErrProviderTaken.
	Create(ctx context.Context, u *User) error
}
