// Package authority owns the session-to-user binding: login, signup,
// logout and resolving the current user from a session.
package authority

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rifftube/internal/auth"
	"rifftube/internal/auth/credentials"
	"rifftube/internal/logger"
	"rifftube/internal/metrics"
	"rifftube/internal/session"
	"rifftube/internal/user"
)

const DefaultTTL = 14 * 24 * time.Hour

type Authority struct {
	creds   *credentials.Service
	users   user.Repository
	store   session.Store
	metrics *metrics.Auth
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Authority)

func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithMetrics(m *metrics.Auth) Option {
	return func(a *Authority) { a.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

func New(
	creds *credentials.Service,
	users user.Repository,
	store session.Store,
	opts ...Option,
) *Authority {
	a := &Authority{
		creds: creds,
		users: users,
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login checks the credentials and, on success, binds a freshly rotated
// session to the user. On failure the session is returned unchanged.
func (a *Authority) Login(
	ctx context.Context,
	sess session.Session,
	login string,
	password string,
) (*user.User, session.Session, error) {

	u, err := a.creds.Authenticate(ctx, login, password)
	if err != nil {
		switch auth.KindOf(err) {
		case auth.KindMissingCredentials:
			a.metrics.Login(metrics.ResultMissing)
		case auth.KindInvalidCredentials:
			a.metrics.Login(metrics.ResultInvalid)
			logger.Warn("failed login", map[string]any{
				"login": credentials.NormalizeLogin(login),
			})
		default:
			a.metrics.Login(metrics.ResultError)
		}
		return nil, sess, err
	}

	next, err := a.Establish(ctx, sess, u)
	if err != nil {
		a.metrics.Login(metrics.ResultError)
		return nil, sess, err
	}

	a.metrics.Login(metrics.ResultSuccess)
	logger.Info("user logged in", map[string]any{"user_id": u.ID})
	return u, next, nil
}

// Signup registers a local account and logs it in.
func (a *Authority) Signup(
	ctx context.Context,
	sess session.Session,
	in credentials.SignupInput,
) (*user.User, session.Session, error) {

	u, err := a.creds.Register(ctx, in)
	if err != nil {
		if auth.KindOf(err) == auth.KindValidationFailed {
			a.metrics.Signup(metrics.ResultInvalid)
		} else {
			a.metrics.Signup(metrics.ResultError)
		}
		return nil, sess, err
	}

	next, err := a.Establish(ctx, sess, u)
	if err != nil {
		a.metrics.Signup(metrics.ResultError)
		return nil, sess, err
	}

	a.metrics.Signup(metrics.ResultSuccess)
	logger.Info("user signed up", map[string]any{"user_id": u.ID})
	return u, next, nil
}

// Establish binds sess to u under a new session ID. The previous ID is
// revoked first so a copied pre-login cookie cannot ride along.
func (a *Authority) Establish(ctx context.Context, sess session.Session, u *user.User) (session.Session, error) {
	if u == nil || u.ID == "" {
		return sess, errors.New("authority: establish without a user")
	}

	if sess.ID != "" {
		if err := a.store.Delete(ctx, sess.ID); err != nil {
			return sess, fmt.Errorf("authority: revoke previous session: %w", err)
		}
	}

	id, err := session.GenerateID()
	if err != nil {
		return sess, err
	}

	now := a.now()
	next := session.Session{
		ID:        id,
		UserID:    u.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.store.Create(ctx, next); err != nil {
		return sess, fmt.Errorf("authority: persist session: %w", err)
	}
	return next, nil
}

// Logout always succeeds and always returns an anonymous session.
func (a *Authority) Logout(ctx context.Context, sess session.Session) session.Session {
	if sess.ID != "" {
		if err := a.store.Delete(ctx, sess.ID); err != nil {
			logger.Warn("logout: session revoke failed", map[string]any{
				"error": err.Error(),
			})
		}
	}
	if !sess.Anonymous() {
		logger.Info("user logged out", map[string]any{"user_id": sess.UserID})
	}
	a.metrics.Logout()
	return session.Session{}
}

// Resolve returns the active user the session points at, or nil. A
// session naming a revoked ID or an inactive user yields a Patch that
// clears it; Resolve itself never mutates anything. Only storage failures
// are returned as errors.
func (a *Authority) Resolve(ctx context.Context, sess session.Session) (*user.User, session.Patch, error) {
	if sess.Anonymous() {
		return nil, session.Patch{}, nil
	}

	stale := session.Patch{ClearUser: true, RevokeID: sess.ID}

	live, err := a.store.Get(ctx, sess.ID)
	if err != nil {
		return nil, session.Patch{}, fmt.Errorf("authority: load session: %w", err)
	}
	if live == nil || live.UserID != sess.UserID {
		return nil, stale, nil
	}

	u, err := a.users.FindActiveByID(ctx, sess.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, stale, nil
	}
	if err != nil {
		return nil, session.Patch{}, err
	}
	return u, session.Patch{}, nil
}

// AuthenticateOrReject is Resolve for endpoints that need a user. The
// patch must still be applied when the error is ErrUnauthenticated.
func (a *Authority) AuthenticateOrReject(ctx context.Context, sess session.Session) (*user.User, session.Patch, error) {
	u, patch, err := a.Resolve(ctx, sess)
	if err != nil {
		return nil, patch, err
	}
	if u == nil {
		return nil, patch, auth.ErrUnauthenticated
	}
	return u, patch, nil
}

// ApplyPatch performs the store side of a patch and returns the session
// to write back to the client.
func (a *Authority) ApplyPatch(ctx context.Context, sess session.Session, p session.Patch) session.Session {
	if p.Empty() {
		return sess
	}
	if p.RevokeID != "" {
		if err := a.store.Delete(ctx, p.RevokeID); err != nil {
			logger.Warn("stale session revoke failed", map[string]any{
				"error": err.Error(),
			})
		}
	}
	if p.ClearUser {
		a.metrics.SessionCleared()
		logger.Debug("cleared stale session", map[string]any{"user_id": sess.UserID})
	}
	return p.Apply(sess)
}
