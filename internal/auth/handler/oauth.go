package handler

import (
	"net/http"
	"net/url"
	"regexp"

	"rifftube/internal/auth"
	"rifftube/internal/logger"
	"rifftube/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Failure codes passed to the frontend.
const (
	FailureCSRF                 = "csrf_detected"
	FailureInvalidCredentials   = "invalid_credentials"
	FailureProvisioningConflict = "provisioning_conflict"
	FailureUnknown              = "unknown_error"
)

var providerErrorCode = regexp.MustCompile(`^[a-z_]{1,64}$`)

func (h *Handler) oauthStart(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.providers.Get(name)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown oauth provider"})
			return
		}

		state, err := h.generateState(c)
		if err != nil {
			h.renderError(c, err)
			return
		}
		challenge := h.generatePKCE(c)

		c.Redirect(http.StatusFound, p.AuthCodeURL(state, challenge))
	}
}

func (h *Handler) oauthCallback(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		p, err := h.providers.Get(name)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown oauth provider"})
			return
		}

		stateOK := validateState(c)
		verifier := getPKCEVerifier(c)
		h.clearOAuthCookies(c)

		// CASE 1: provider reported an error (user denied consent, etc.)
		if errParam := c.Query("error"); errParam != "" {
			logger.Warn("oauth callback returned error", map[string]any{
				"provider": name,
				"error":    errParam,
				"desc":     c.Query("error_description"),
			})
			code := FailureInvalidCredentials
			if providerErrorCode.MatchString(errParam) {
				code = errParam
			}
			h.oauthFail(c, name, code)
			return
		}

		// CASE 2: normal callback
		if !stateOK {
			logger.Warn("oauth state mismatch", map[string]any{
				"provider": name,
				"ip":       c.ClientIP(),
			})
			h.oauthFail(c, name, FailureCSRF)
			return
		}

		code := c.Query("code")
		if code == "" || verifier == "" {
			logger.Warn("oauth callback missing code or pkce verifier", map[string]any{
				"provider": name,
			})
			h.oauthFail(c, name, FailureInvalidCredentials)
			return
		}

		identity, err := p.ExchangeCode(ctx, code, verifier)
		if err != nil {
			logger.Warn("oauth code exchange failed", map[string]any{
				"provider": name,
				"error":    err.Error(),
			})
			h.oauthFail(c, name, FailureInvalidCredentials)
			return
		}

		u, created, err := h.resolver.Resolve(ctx, identity)
		if err != nil {
			if auth.KindOf(err) == auth.KindProvisioningConflict {
				logger.Warn("oauth provisioning conflict", map[string]any{
					"provider": name,
					"error":    err.Error(),
				})
				h.metrics.OAuthCallback(name, metrics.ResultConflict)
				h.oauthFail(c, name, FailureProvisioningConflict)
				return
			}
			logger.Error("oauth identity resolution failed", map[string]any{
				"provider": name,
				"error":    err.Error(),
			})
			h.oauthFail(c, name, FailureUnknown)
			return
		}

		sess, err := h.authority.Establish(ctx, h.currentSession(c), u)
		if err != nil {
			logger.Error("oauth session establish failed", map[string]any{
				"provider": name,
				"error":    err.Error(),
			})
			h.oauthFail(c, name, FailureUnknown)
			return
		}
		if err := h.cookies.Write(c.Writer, sess); err != nil {
			logger.Error("oauth session cookie write failed", map[string]any{"error": err.Error()})
			h.oauthFail(c, name, FailureUnknown)
			return
		}

		result := metrics.ResultExisting
		if created {
			result = metrics.ResultCreated
		}
		h.metrics.OAuthCallback(name, result)

		logger.Info("oauth login", map[string]any{
			"provider": name,
			"user_id":  u.ID,
			"created":  created,
			"ip":       c.ClientIP(),
		})

		h.redirectToFrontend(c, "/auth/success", nil)
	}
}

// oauthFail sends the browser to the API failure endpoint, which then
// forwards to the frontend. No session is touched.
func (h *Handler) oauthFail(c *gin.Context, strategy, code string) {
	if code != FailureProvisioningConflict {
		h.metrics.OAuthCallback(strategy, metrics.ResultFailure)
	}
	q := url.Values{}
	q.Set("message", code)
	q.Set("strategy", strategy)
	c.Redirect(http.StatusFound, failurePath+"?"+q.Encode())
}

func (h *Handler) oauthFailure(c *gin.Context) {
	message := c.Query("message")
	if message == "" {
		message = FailureUnknown
	}
	q := url.Values{}
	q.Set("message", message)
	if strategy := c.Query("strategy"); strategy != "" {
		q.Set("strategy", strategy)
	}
	h.redirectToFrontend(c, "/auth/failure", q)
}
