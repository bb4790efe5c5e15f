package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinRequireAuth adapts the net/http AuthMiddleware to Gin. Auth decisions
// stay in the transport-agnostic middleware; this only bridges the chain.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})

		handler := auth.RequireAuth(next)
		handler.ServeHTTP(c.Writer, c.Request)

		// If auth middleware already wrote the 401, stop the Gin chain.
		if c.Writer.Written() {
			c.Abort()
			return
		}
	}
}
