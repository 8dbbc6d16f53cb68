package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"rifftube/internal/auth"
	"rifftube/internal/auth/credentials"
	"rifftube/internal/logger"
	"rifftube/internal/user"
	"rifftube/internal/utils"
)

const (
	// suffixAttempts bounds how many "-xxxx" variants are tried after the
	// bare derived username is taken.
	suffixAttempts = 5

	maxBaseUsername = credentials.MaxUsernameLength - 5
	placeholderLen  = 16 // bytes, 32 hex chars
)

var usernameStrip = regexp.MustCompile(`[^a-z0-9_.-]+`)

// UserResolver resolves identities against the user repository. Accounts
// are matched on (provider, provider_uid) only; an existing account with
// the same email is never linked automatically.
type UserResolver struct {
	users user.Repository
	// suffix is swappable so tests can force collisions.
	suffix func() (string, error)
}

func NewUserResolver(users user.Repository) *UserResolver {
	return &UserResolver{
		users:  users,
		suffix: func() (string, error) { return utils.RandomHex(2) },
	}
}

func (r *UserResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (*user.User, bool, error) {

	if identity == nil {
		return nil, false, errors.New("resolver: identity is nil")
	}
	if identity.Provider == "" || identity.ProviderUserID == "" || identity.Email == "" {
		return nil, false, errors.New("resolver: identity missing provider, subject or email")
	}

	// 1. Existing account for this provider identity
	u, err := r.users.FindActiveByProvider(ctx, identity.Provider, identity.ProviderUserID)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, false, err
	}

	// 2. Provision
	u, err = r.provision(ctx, identity)
	if err != nil {
		return nil, false, err
	}

	logger.Info("provisioned oauth user", map[string]any{
		"provider": identity.Provider,
		"user_id":  u.ID,
		"username": u.Username,
	})
	return u, true, nil
}

func (r *UserResolver) provision(ctx context.Context, identity *auth.Identity) (*user.User, error) {
	email := strings.TrimSpace(identity.Email)

	taken, err := r.users.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, emailConflict()
	}

	secret, err := utils.RandomHex(placeholderLen)
	if err != nil {
		return nil, err
	}
	hash, err := credentials.HashPassword(secret)
	if err != nil {
		return nil, err
	}

	base := DeriveUsername(email)

	for attempt := 0; attempt <= suffixAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			sfx, err := r.suffix()
			if err != nil {
				return nil, err
			}
			candidate = base + "-" + sfx
		}

		taken, err := r.users.UsernameTaken(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		u := &user.User{
			Email:        email,
			Username:     candidate,
			Name:         displayName(identity),
			PasswordHash: hash,
			Provider:     identity.Provider,
			ProviderUID:  identity.ProviderUserID,
		}

		switch err := r.users.Create(ctx, u); {
		case err == nil:
			return u, nil
		case errors.Is(err, user.ErrUsernameTaken):
			continue
		case errors.Is(err, user.ErrEmailTaken):
			return nil, emailConflict()
		case errors.Is(err, user.ErrProviderTaken):
			// A concurrent callback for the same identity won the insert.
			existing, findErr := r.users.FindActiveByProvider(ctx, identity.Provider, identity.ProviderUserID)
			if findErr == nil {
				return existing, nil
			}
			return nil, auth.ProvisioningConflict(auth.FieldErrors{"uid": {auth.MsgTaken}})
		default:
			return nil, fmt.Errorf("resolver: create user: %w", err)
		}
	}

	return nil, auth.ProvisioningConflict(auth.FieldErrors{"username": {auth.MsgTaken}})
}

// DeriveUsername builds a username from the email local-part: lower-cased,
// stripped to [a-z0-9_.-], and short enough to take a "-xxxx" suffix.
func DeriveUsername(email string) string {
	local := email
	if at := strings.LastIndex(email, "@"); at >= 0 {
		local = email[:at]
	}

	name := usernameStrip.ReplaceAllString(strings.ToLower(local), "")
	if len(name) > maxBaseUsername {
		name = name[:maxBaseUsername]
	}
	if len(name) < credentials.MinUsernameLength {
		name = "user_" + name
	}
	return name
}

func displayName(identity *auth.Identity) string {
	if n := strings.TrimSpace(identity.Name); n != "" {
		return n
	}
	local, _, _ := strings.Cut(identity.Email, "@")
	return local
}

func emailConflict() error {
	return auth.ProvisioningConflict(auth.FieldErrors{"email": {auth.MsgTaken}})
}
