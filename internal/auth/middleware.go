package auth

import (
	"net/http"
	"strings"
	"time"

	"topup-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireAccessToken admits requests carrying a valid operator access token and
// puts the operator id and role on the request context. Role checks are left
// to rbac.RequireAnyRole.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="topup-ops"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator token required"})
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("operator token rejected", "err", err)
			c.Header("WWW-Authenticate", `Bearer realm="topup-ops", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator token rejected"})
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.OperatorID, claims.Role))
		c.Next()
	}
}

// bearerToken accepts the scheme in any case, as RFC 6750 allows.
func bearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
