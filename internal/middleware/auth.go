package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gotogether/internal/auth"
	"gotogether/internal/domain"
)

const principalKey = "principal"

// Auth verifies the bearer credential and stores the caller's principal.
// Browsers cannot set headers on a WebSocket handshake, so upgrade requests
// may carry the token in the "token" query parameter instead.
func Auth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, "missing credential")
			return
		}

		p, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "invalid credential")
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal returns the caller authenticated by Auth.
func Principal(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
			return ""
		}
		return strings.TrimSpace(header[len(prefix):])
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "kind": "unauthorized"})
}
