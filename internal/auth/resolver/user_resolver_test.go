package resolver

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rifftube/internal/auth"
	"rifftube/internal/auth/credentials"
	"rifftube/internal/logger"
	"rifftube/internal/user"
)

func init() {
	logger.SetOutput(io.Discard)
}

func googleIdentity(uid, email, name string) *auth.Identity {
	return &auth.Identity{
		Provider:       "google",
		ProviderUserID: uid,
		Email:          email,
		EmailVerified:  true,
		Name:           name,
	}
}

func TestResolve_CreatesOnceThenReuses(t *testing.T) {
	repo := user.NewMemoryRepository()
	r := NewUserResolver(repo)
	ctx := context.Background()
	id := googleIdentity("1234567890", "joel@example.com", "Joel Hodgson")

	first, created, err := r.Resolve(ctx, id)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "joel", first.Username)
	assert.Equal(t, "Joel Hodgson", first.Name)
	assert.Equal(t, "google", first.Provider)
	assert.NotEmpty(t, first.PasswordHash)

	second, created, err := r.Resolve(ctx, id)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.Count())
}

func TestResolve_PlaceholderPasswordIsUnguessable(t *testing.T) {
	repo := user.NewMemoryRepository()
	u, _, err := NewUserResolver(repo).Resolve(context.Background(),
		googleIdentity("1", "joel@example.com", ""))
	require.NoError(t, err)

	assert.Error(t, credentials.VerifyPassword(u.PasswordHash, "joel"))
	assert.Equal(t, "joel", u.Name, "name falls back to the email local-part")
}

func TestResolve_UsernameCollisionGetsSuffix(t *testing.T) {
	repo := user.NewMemoryRepository()
	require.NoError(t, repo.Create(context.Background(), &user.User{Email: "other@example.com", Username: "joel"}))

	r := NewUserResolver(repo)
	r.suffix = func() (string, error) { return "a1b2", nil }

	u, created, err := r.Resolve(context.Background(), googleIdentity("1", "joel@example.com", "Joel"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "joel-a1b2", u.Username)
}

func TestResolve_UsernameExhaustedIsConflict(t *testing.T) {
	repo := user.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &user.User{Email: "a@example.com", Username: "joel"}))
	require.NoError(t, repo.Create(ctx, &user.User{Email: "b@example.com", Username: "joel-0000"}))

	r := NewUserResolver(repo)
	r.suffix = func() (string, error) { return "0000", nil }

	_, _, err := r.Resolve(ctx, googleIdentity("1", "joel@example.com", "Joel"))
	var ae *auth.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, auth.KindProvisioningConflict, ae.Kind)
	assert.Equal(t, []string{auth.MsgTaken}, ae.Fields["username"])
	assert.Equal(t, 2, repo.Count())
}

func TestResolve_EmailCollisionIsConflict(t *testing.T) {
	repo := user.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &user.User{Email: "Joel@Example.com", Username: "hax"}))

	_, _, err := NewUserResolver(repo).Resolve(ctx, googleIdentity("1", "joel@example.com", "Joel"))
	var ae *auth.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, auth.KindProvisioningConflict, ae.Kind)
	assert.Contains(t, ae.Fields, "email")
	assert.Equal(t, 1, repo.Count())
}

func TestResolve_SoftDeletedEmailIsConflict(t *testing.T) {
	repo := user.NewMemoryRepository()
	ctx := context.Background()
	old := &user.User{Email: "joel@example.com", Username: "joel", Provider: "google", ProviderUID: "1"}
	require.NoError(t, repo.Create(ctx, old))
	repo.SoftDelete(old.ID)

	_, _, err := NewUserResolver(repo).Resolve(ctx, googleIdentity("1", "joel@example.com", "Joel"))
	assert.Equal(t, auth.KindProvisioningConflict, auth.KindOf(err))
}

func TestResolve_RejectsIncompleteIdentity(t *testing.T) {
	r := NewUserResolver(user.NewMemoryRepository())

	_, _, err := r.Resolve(context.Background(), nil)
	assert.Error(t, err)

	_, _, err = r.Resolve(context.Background(), &auth.Identity{Provider: "google", ProviderUserID: "1"})
	assert.Error(t, err)
}

func TestDeriveUsername(t *testing.T) {
	tests := map[string]string{
		"joel@example.com":         "joel",
		"Tom.Servo+riffs@mst3k.tv": "tom.servoriffs",
		"jo@example.com":           "user_jo",
		"!!@example.com":           "user_",
		"a-very-long-local-part-that-keeps-going@example.com": "a-very-long-local-part-th",
	}
	for email, want := range tests {
		assert.Equal(t, want, DeriveUsername(email), email)
	}
}
