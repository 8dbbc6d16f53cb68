package credentials

import (
	"context"
	"errors"
	"strings"

	"rifftube/internal/auth"
	"rifftube/internal/user"
)

// Service verifies passwords and registers local accounts. It knows
// nothing about sessions.
type Service struct {
	users user.Repository
}

func NewService(users user.Repository) *Service {
	return &Service{users: users}
}

// Authenticate returns the active user matching login (email or username,
// any case) whose password matches. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(
	ctx context.Context,
	login string,
	password string,
) (*user.User, error) {

	normalized := NormalizeLogin(login)
	if normalized == "" || strings.TrimSpace(password) == "" {
		return nil, auth.ErrMissingCredentials
	}

	u, err := s.users.FindActiveByLogin(ctx, normalized)
	if errors.Is(err, user.ErrNotFound) {
		_ = VerifyPassword(string(dummyHash), password)
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if u.PasswordHash == "" || VerifyPassword(u.PasswordHash, password) != nil {
		return nil, auth.ErrInvalidCredentials
	}

	return u, nil
}

// Register validates and stores a new local account.
func (s *Service) Register(ctx context.Context, in SignupInput) (*user.User, error) {
	in = in.normalized()

	fields := in.validate()

	if _, bad := fields["email"]; !bad {
		taken, err := s.users.EmailTaken(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			fields.Add("email", auth.MsgTaken)
		}
	}
	if _, bad := fields["username"]; !bad {
		taken, err := s.users.UsernameTaken(ctx, in.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			fields.Add("username", auth.MsgTaken)
		}
	}

	if !fields.Empty() {
		return nil, auth.ValidationFailed(fields)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		Email:        in.Email,
		Username:     in.Username,
		Name:         in.Name,
		PasswordHash: hash,
	}

	// The checks above race with concurrent signups; the unique indexes
	// are the final word.
	switch err := s.users.Create(ctx, u); {
	case errors.Is(err, user.ErrEmailTaken):
		return nil, auth.ValidationFailed(auth.FieldErrors{"email": {auth.MsgTaken}})
	case errors.Is(err, user.ErrUsernameTaken):
		return nil, auth.ValidationFailed(auth.FieldErrors{"username": {auth.MsgTaken}})
	case err != nil:
		return nil, err
	}

	return u, nil
}
