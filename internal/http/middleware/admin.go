package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAdminToken carries the static admin API token.
const HeaderAdminToken = "X-Admin-Token"

// AdminAuth guards the admin API with a constant-time token comparison. An
// empty configured token disables the API: every request gets 404 so the
// surface is not advertised.
func AdminAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "not_found",
				"message":    "admin API disabled",
			})
			return
		}
		got := []byte(c.GetHeader(HeaderAdminToken))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			LoggerFrom(c).Warn().Str("remote_ip", c.ClientIP()).Msg("admin token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "missing or invalid admin token",
			})
			return
		}
		c.Next()
	}
}
