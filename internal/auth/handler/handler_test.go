package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rifftube/internal/auth"
	"rifftube/internal/auth/authority"
	"rifftube/internal/auth/credentials"
	"rifftube/internal/auth/provider"
	"rifftube/internal/auth/resolver"
	"rifftube/internal/logger"
	"rifftube/internal/redirect"
	"rifftube/internal/session"
	"rifftube/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
}

const frontend = "http://localhost:5173"

type fakeProvider struct {
	identity *auth.Identity
	err      error
	verifier string
}

func (f *fakeProvider) Name() string { return "google_oauth2" }

func (f *fakeProvider) AuthCodeURL(state, challenge string) string {
	q := url.Values{"state": {state}, "code_challenge": {challenge}}
	return "https://provider.test/auth?" + q.Encode()
}

func (f *fakeProvider) ExchangeCode(_ context.Context, _ string, verifier string) (*auth.Identity, error) {
	f.verifier = verifier
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type testServer struct {
	router   *gin.Engine
	repo     *user.MemoryRepository
	provider *fakeProvider
	jar      map[string]*http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := user.NewMemoryRepository()
	store := session.NewMemoryStore()
	codec, err := session.NewCodec([]byte("handler-test-secret-handler-test-secret"))
	require.NoError(t, err)
	guard, err := redirect.NewGuard(redirect.Policy{Raw: frontend})
	require.NoError(t, err)

	fp := &fakeProvider{identity: &auth.Identity{
		Provider:       "google",
		ProviderUserID: "1234567890",
		Email:          "joel@example.com",
		Name:           "Joel Hodgson",
	}}

	h := NewHandler(Deps{
		Authority: authority.New(credentials.NewService(repo), repo, store),
		Providers: provider.NewRegistry(fp),
		Resolver:  resolver.NewUserResolver(repo),
		Guard:     guard,
		Cookies:   session.NewCookies(codec, session.CookieOptions{}),
	})

	r := gin.New()
	h.RegisterRoutes(r)

	return &testServer{router: r, repo: repo, provider: fp, jar: map[string]*http.Cookie{}}
}

// do sends a request carrying the accumulated cookies and records any
// cookies the response sets, like a browser would.
func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range s.jar {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(s.jar, c.Name)
			continue
		}
		s.jar[c.Name] = c
	}
	return rec
}

func (s *testServer) seed(t *testing.T, email, username, password string) *user.User {
	t.Helper()
	hash, err := credentials.HashPassword(password)
	require.NoError(t, err)
	u := &user.User{Email: email, Username: username, PasswordHash: hash}
	require.NoError(t, s.repo.Create(context.Background(), u))
	return u
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLogin_ThenMe(t *testing.T) {
	s := newTestServer(t)
	u := s.seed(t, "foo@bar.com", "foo", "secret123")

	rec := s.do(http.MethodPost, "/api/v1/login", `{"user":{"login":"FOO@bar.com ","password":"secret123"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID, decode(t, rec)["user"].(map[string]any)["id"])
	require.Contains(t, s.jar, session.CookieName)

	rec = s.do(http.MethodGet, "/api/v1/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "foo@bar.com", body["email"])
	assert.NotContains(t, body, "password_hash")

	rec = s.do(http.MethodGet, "/api/v1/users/me", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_RotatesCookie(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "foo@bar.com", "foo", "secret123")

	s.do(http.MethodPost, "/api/v1/login", `{"user":{"login":"foo","password":"secret123"}}`)
	first := s.jar[session.CookieName]

	s.do(http.MethodPost, "/api/v1/login", `{"user":{"login":"foo","password":"secret123"}}`)
	second := s.jar[session.CookieName]
	assert.NotEqual(t, first.Value, second.Value)

	// Replaying the first cookie no longer authenticates.
	s.jar = map[string]*http.Cookie{session.CookieName: first}
	rec := s.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_Errors(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "foo@bar.com", "foo", "secret123")

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"missing", `{"user":{"login":"  ","password":"secret123"}}`, http.StatusBadRequest, `{"error":"Login and password are required"}`},
		{"unknown user", `{"user":{"login":"nobody","password":"secret123"}}`, http.StatusUnauthorized, `{"error":"Invalid login or password"}`},
		{"wrong password", `{"user":{"login":"foo","password":"nope-nope"}}`, http.StatusUnauthorized, `{"error":"Invalid login or password"}`},
		{"malformed", `{"user":`, http.StatusBadRequest, `{"error":"invalid request"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/login", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.NotContains(t, s.jar, session.CookieName)
		})
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "foo@bar.com", "foo", "secret123")

	rec := s.do(http.MethodDelete, "/api/v1/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code, "logout without a session still succeeds")

	s.do(http.MethodPost, "/api/v1/login", `{"user":{"login":"foo","password":"secret123"}}`)
	rec = s.do(http.MethodDelete, "/api/v1/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, s.jar, session.CookieName)

	rec = s.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"You must be logged in"}`, rec.Body.String())
}

func TestMe_DeletedUserIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	u := s.seed(t, "foo@bar.com", "foo", "secret123")

	s.do(http.MethodPost, "/api/v1/login", `{"user":{"login":"foo","password":"secret123"}}`)
	s.repo.SoftDelete(u.ID)

	rec := s.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, s.jar, session.CookieName, "stale cookie is cleared")
}

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/signup",
		`{"user":{"username":"crow","email":"crow@example.com","password":"secret123"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "crow", decode(t, rec)["user"].(map[string]any)["username"])

	rec = s.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignup_DeletedEmailIsTaken(t *testing.T) {
	s := newTestServer(t)
	u := s.seed(t, "deleted@example.com", "ghost", "secret123")
	s.repo.SoftDelete(u.ID)

	rec := s.do(http.MethodPost, "/api/v1/signup",
		`{"user":{"username":"another","email":"deleted@example.com","password":"secret123"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"errors":{"email":["has already been taken"]}}`, rec.Body.String())
}

func TestSignup_FieldErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/signup", `{"user":{"username":"","email":"","password":""}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode(t, rec)["errors"].(map[string]any)
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestSignup_PasswordTooLong(t *testing.T) {
	s := newTestServer(t)

	body := `{"user":{"username":"riffer","email":"riffer@example.com","password":"` + strings.Repeat("a", 80) + `"}}`
	rec := s.do(http.MethodPost, "/api/v1/signup", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"errors":{"password":["is too long (maximum is 72 characters)"]}}`, rec.Body.String())
	assert.Zero(t, s.repo.Count())
}

// startOAuth begins the flow and returns the state the provider would echo.
func (s *testServer) startOAuth(t *testing.T) string {
	t.Helper()
	rec := s.do(http.MethodGet, "/api/v1/auth/google_oauth2", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "provider.test", loc.Host)
	assert.Equal(t, pkceChallenge(s.jar[pkceCookieName].Value), loc.Query().Get("code_challenge"))
	return loc.Query().Get("state")
}

func TestPKCEChallenge_S256(t *testing.T) {
	// RFC 7636 appendix B.
	assert.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuKEBEd0a2U",
		pkceChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)

	s := newTestServer(t)
	s.startOAuth(t)
	assert.Len(t, s.jar[pkceCookieName].Value, 43)
}

func TestOAuth_SuccessCreatesThenReusesUser(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		state := s.startOAuth(t)
		rec := s.do(http.MethodGet, "/api/v1/auth/google_oauth2/callback?code=abc&state="+state, "")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, frontend+"/auth/success", rec.Header().Get("Location"))
		assert.NotEmpty(t, s.provider.verifier)
		assert.NotContains(t, s.jar, stateCookieName, "state is single use")
	}
	assert.Equal(t, 1, s.repo.Count())

	rec := s.do(http.MethodGet, "/api/v1/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "joel", decode(t, rec)["user"].(map[string]any)["username"])
}

func TestOAuth_CallbackFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(s *testServer) string
		message string
	}{
		{
			name: "bad state",
			prepare: func(s *testServer) string {
				s.startOAuth(t)
				return "?code=abc&state=forged"
			},
			message: FailureCSRF,
		},
		{
			name: "provider error",
			prepare: func(s *testServer) string {
				return "?error=access_denied"
			},
			message: "access_denied",
		},
		{
			name: "exchange fails",
			prepare: func(s *testServer) string {
				s.provider.err = errors.New("bad code")
				return "?code=abc&state=" + s.startOAuth(t)
			},
			message: FailureInvalidCredentials,
		},
		{
			name: "email conflict",
			prepare: func(s *testServer) string {
				s.seed(t, "joel@example.com", "hax", "secret123")
				return "?code=abc&state=" + s.startOAuth(t)
			},
			message: FailureProvisioningConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			query := tt.prepare(s)

			rec := s.do(http.MethodGet, "/api/v1/auth/google_oauth2/callback"+query, "")
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t,
				"/api/v1/auth/failure?message="+tt.message+"&strategy=google_oauth2",
				rec.Header().Get("Location"))
			assert.NotContains(t, s.jar, session.CookieName, "failure never establishes a session")
		})
	}
}

func TestOAuthFailure_ForwardsToFrontend(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/auth/failure?message=invalid_credentials&strategy=google_oauth2", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t,
		frontend+"/auth/failure?message=invalid_credentials&strategy=google_oauth2",
		rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/api/v1/auth/failure", "")
	assert.Equal(t, frontend+"/auth/failure?message=unknown_error", rec.Header().Get("Location"))
}

func TestOAuth_UnknownProvider(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/v1/auth/github", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
