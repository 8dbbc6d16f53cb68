package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextUserKey is the gin context key holding the *user.User.
const ContextUserKey = "user"

// GinRequireAuth adapts the net/http AuthMiddleware to Gin.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			if u, ok := UserFromContext(r.Context()); ok {
				c.Set(ContextUserKey, u)
			}
			c.Next()
		})

		auth.RequireAuth(next).ServeHTTP(c.Writer, c.Request)

		// If auth middleware already handled the response, stop Gin chain
		if c.Writer.Written() {
			c.Abort()
			return
		}
	}
}
