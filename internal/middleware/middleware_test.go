package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rifftube/internal/auth/authority"
	"rifftube/internal/auth/credentials"
	"rifftube/internal/logger"
	"rifftube/internal/session"
	"rifftube/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
}

type env struct {
	repo    *user.MemoryRepository
	auth    *authority.Authority
	cookies *session.Cookies
	router  *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := user.NewMemoryRepository()
	a := authority.New(credentials.NewService(repo), repo, session.NewMemoryStore())
	codec, err := session.NewCodec([]byte("test-secret-test-secret-test-secret"))
	require.NoError(t, err)
	cookies := session.NewCookies(codec, session.CookieOptions{})

	r := gin.New()
	r.GET("/me", GinRequireAuth(NewAuthMiddleware(a, cookies)), func(c *gin.Context) {
		u := c.MustGet(ContextUserKey).(*user.User)
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	})

	return &env{repo: repo, auth: a, cookies: cookies, router: r}
}

func (e *env) loggedIn(t *testing.T) (*user.User, *http.Cookie) {
	t.Helper()
	u := &user.User{Email: "joel@example.com", Username: "joel"}
	require.NoError(t, e.repo.Create(context.Background(), u))

	sess, err := e.auth.Establish(context.Background(), session.Session{}, u)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, e.cookies.Write(rec, sess))
	return u, rec.Result().Cookies()[0]
}

func TestRequireAuth_NoCookie(t *testing.T) {
	e := newEnv(t)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"You must be logged in"}`, rec.Body.String())
}

func TestRequireAuth_ValidSession(t *testing.T) {
	e := newEnv(t)
	u, cookie := e.loggedIn(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+u.ID+`"}`, rec.Body.String())
}

func TestRequireAuth_DeletedUserClearsCookie(t *testing.T) {
	e := newEnv(t)
	u, cookie := e.loggedIn(t)
	e.repo.SoftDelete(u.ID)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, session.CookieName, cleared[0].Name)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestRequireAuth_TamperedCookie(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "not.a.jwt"})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(3, nil)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "other clients have their own bucket")

	now = now.Add(20 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "one token refills every 20s")
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(5, nil)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(limiterIdleTTL + time.Minute)
	rl.Allow("10.0.0.2")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.visitors, 1)
}

func TestRateLimiter_Middleware429(t *testing.T) {
	rl := NewRateLimiter(1, nil)
	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
