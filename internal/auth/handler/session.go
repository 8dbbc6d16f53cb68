package handler

import (
	"net/http"

	"rifftube/internal/auth"
	"rifftube/internal/auth/credentials"
	"rifftube/internal/middleware"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	User struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	} `json:"user"`
}

type signupRequest struct {
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	} `json:"user"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess := h.currentSession(c)

	u, next, err := h.authority.Login(
		c.Request.Context(),
		sess,
		req.User.Login,
		req.User.Password,
	)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if !h.writeSession(c, next) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess := h.currentSession(c)

	u, next, err := h.authority.Signup(c.Request.Context(), sess, credentials.SignupInput{
		Username: req.User.Username,
		Email:    req.User.Email,
		Password: req.User.Password,
		Name:     req.User.Name,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	if !h.writeSession(c, next) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u.Public()})
}

// logout is idempotent: with or without a session the answer is 204.
func (h *Handler) logout(c *gin.Context) {
	sess := h.currentSession(c)
	h.authority.Logout(c.Request.Context(), sess)
	h.cookies.Clear(c.Writer)
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	u, ok := middleware.UserFromContext(c.Request.Context())
	if !ok {
		h.renderError(c, auth.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}
