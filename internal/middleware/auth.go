package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"rifftube/internal/auth"
	"rifftube/internal/logger"
	"rifftube/internal/session"
	"rifftube/internal/user"
)

// unexported, collision-proof context keys
type userContextKeyType struct{}
type sessionContextKeyType struct{}

var (
	userKey    = userContextKeyType{}
	sessionKey = sessionContextKeyType{}
)

// UserFromContext returns the authenticated user set by RequireAuth.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userKey).(*user.User)
	return u, ok && u != nil
}

// SessionFromContext returns the session RequireAuth authenticated.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(session.Session)
	return s, ok
}

// Authenticator is the part of the session authority the middleware needs.
type Authenticator interface {
	AuthenticateOrReject(ctx context.Context, sess session.Session) (*user.User, session.Patch, error)
	ApplyPatch(ctx context.Context, sess session.Session, p session.Patch) session.Session
}

type AuthMiddleware struct {
	Authority Authenticator
	Cookies   *session.Cookies
}

func NewAuthMiddleware(authority Authenticator, cookies *session.Cookies) *AuthMiddleware {
	return &AuthMiddleware{Authority: authority, Cookies: cookies}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Read session cookie
		sess, tampered := a.Cookies.Read(r)
		if tampered {
			a.Cookies.Clear(w)
		}

		// 2. Resolve the user, clearing the session if it went stale
		u, patch, err := a.Authority.AuthenticateOrReject(r.Context(), sess)
		if !patch.Empty() {
			sess = a.Authority.ApplyPatch(r.Context(), sess, patch)
			if werr := a.Cookies.Write(w, sess); werr != nil {
				logger.Error("failed to write session cookie", map[string]any{"error": werr.Error()})
			}
		}

		if errors.Is(err, auth.ErrUnauthenticated) {
			writeJSONError(w, http.StatusUnauthorized, auth.ErrUnauthenticated.Message)
			return
		}
		if err != nil {
			logger.Error("session resolution failed", map[string]any{
				"error": err.Error(),
				"path":  r.URL.Path,
			})
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		// 3. Attach user and session to context
		ctx := context.WithValue(r.Context(), userKey, u)
		ctx = context.WithValue(ctx, sessionKey, sess)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
