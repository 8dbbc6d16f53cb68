package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const (
	pkceCookieName = "__oauth_pkce"
	pkceTTL        = 5 * time.Minute
)

func (h *Handler) generatePKCE(c *gin.Context) (challenge string) {
	verifier := oauth2.GenerateVerifier()
	h.setOAuthCookie(c, pkceCookieName, verifier, pkceTTL)
	return pkceChallenge(verifier)
}

// pkceChallenge is the S256 transform of the verifier.
func pkceChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

func getPKCEVerifier(c *gin.Context) string {
	cookie, err := c.Request.Cookie(pkceCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
