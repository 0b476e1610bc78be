package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const adminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware guards the manual job triggers. The key is stored
// as a bcrypt hash in the environment, never in clear.
func AdminKeyMiddleware(adminKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKeyHash == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin endpoints are disabled"})
			c.Abort()
			return
		}

		key := c.GetHeader(adminKeyHeader)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "admin key required"})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
