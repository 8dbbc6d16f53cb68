package handler

import (
	"errors"
	"net/http"
	"net/url"

	"rifftube/internal/auth"
	"rifftube/internal/auth/authority"
	"rifftube/internal/auth/provider"
	"rifftube/internal/auth/resolver"
	"rifftube/internal/logger"
	"rifftube/internal/metrics"
	"rifftube/internal/middleware"
	"rifftube/internal/redirect"
	"rifftube/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	apiPrefix   = "/api/v1"
	failurePath = apiPrefix + "/auth/failure"
)

// Deps are the collaborators a Handler needs. Limiter and Metrics may be nil.
type Deps struct {
	Authority *authority.Authority
	Providers *provider.Registry
	Resolver  resolver.Resolver
	Guard     *redirect.Guard
	Cookies   *session.Cookies
	Limiter   *middleware.RateLimiter
	Metrics   *metrics.Auth

	// SecureCookies marks the short-lived OAuth state and PKCE cookies Secure.
	SecureCookies bool
}

type Handler struct {
	authority     *authority.Authority
	providers     *provider.Registry
	resolver      resolver.Resolver
	guard         *redirect.Guard
	cookies       *session.Cookies
	limiter       *middleware.RateLimiter
	metrics       *metrics.Auth
	secureCookies bool
	requireAuth   gin.HandlerFunc
}

func NewHandler(d Deps) *Handler {
	providers := d.Providers
	if providers == nil {
		providers = provider.NewRegistry()
	}
	return &Handler{
		authority:     d.Authority,
		providers:     providers,
		resolver:      d.Resolver,
		guard:         d.Guard,
		cookies:       d.Cookies,
		limiter:       d.Limiter,
		metrics:       d.Metrics,
		secureCookies: d.SecureCookies,
		requireAuth: middleware.GinRequireAuth(
			middleware.NewAuthMiddleware(d.Authority, d.Cookies),
		),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group(apiPrefix)

	api.POST("/login", h.limited(h.login)...)
	api.DELETE("/logout", h.logout)
	api.POST("/signup", h.limited(h.signup)...)

	api.GET("/me", h.requireAuth, h.me)
	api.GET("/users/me", h.requireAuth, h.me)

	// One route pair per configured provider; gin cannot mix a
	// /auth/:provider wildcard with the static /auth/failure route.
	for _, name := range h.providers.Names() {
		api.GET("/auth/"+name, h.oauthStart(name))
		api.GET("/auth/"+name+"/callback", h.oauthCallback(name))
	}
	api.GET("/auth/failure", h.oauthFailure)

	for _, route := range r.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

func (h *Handler) limited(final gin.HandlerFunc) []gin.HandlerFunc {
	if h.limiter == nil {
		return []gin.HandlerFunc{final}
	}
	return []gin.HandlerFunc{h.limiter.Middleware(), final}
}

// currentSession reads the request's session. A cookie that fails
// verification is treated as no session at all.
func (h *Handler) currentSession(c *gin.Context) session.Session {
	sess, tampered := h.cookies.Read(c.Request)
	if tampered {
		logger.Warn("rejected session cookie", map[string]any{"ip": c.ClientIP()})
	}
	return sess
}

func (h *Handler) writeSession(c *gin.Context, sess session.Session) bool {
	if err := h.cookies.Write(c.Writer, sess); err != nil {
		h.renderError(c, err)
		return false
	}
	return true
}

// renderError writes {error} or {errors} for auth errors and a generic
// 500 for everything else.
func (h *Handler) renderError(c *gin.Context, err error) {
	var ae *auth.Error
	if errors.As(err, &ae) {
		if !ae.Fields.Empty() {
			c.JSON(ae.Status(), gin.H{"errors": ae.Fields})
			return
		}
		c.JSON(ae.Status(), gin.H{"error": ae.Message})
		return
	}

	logger.Error("request failed", map[string]any{
		"error":  err.Error(),
		"method": c.Request.Method,
		"path":   c.FullPath(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// redirectToFrontend is the only place the API redirects cross-origin.
func (h *Handler) redirectToFrontend(c *gin.Context, path string, query url.Values) {
	c.Redirect(http.StatusFound, h.guard.BuildRedirectURL(path, query))
}
