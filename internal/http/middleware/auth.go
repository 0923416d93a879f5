package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// SharedSecretAuth guards the worker-facing endpoints. Workers present the
// deployment's shared secret as a bearer token; an empty configured secret
// disables the check for local runs.
type SharedSecretAuth struct {
	log    *logger.Logger
	secret string
}

func NewSharedSecretAuth(log *logger.Logger, secret string) *SharedSecretAuth {
	return &SharedSecretAuth{log: log.With("middleware", "SharedSecretAuth"), secret: strings.TrimSpace(secret)}
}

func (a *SharedSecretAuth) RequireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.secret == "" {
			c.Next()
			return
		}
		token := extractBearer(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.secret)) != 1 {
			a.log.Warn("Rejected worker request with bad credentials", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
