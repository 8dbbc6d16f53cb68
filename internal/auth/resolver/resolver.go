package resolver

import (
	"context"

	"rifftube/internal/auth"
	"rifftube/internal/user"
)

// Resolver determines which account an external identity belongs to,
// creating one on first sight. It is the only place that maps identities
// to users; it never touches sessions.
type Resolver interface {
	// Resolve returns the account and whether it was created by this call.
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
	) (u *user.User, created bool, err error)
}
