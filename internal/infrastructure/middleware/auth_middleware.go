package middleware

import (
	"strings"

	"sprinta/internal/core/services"
	"sprinta/pkg/errors"
	"sprinta/pkg/logger"

	"github.com/gin-gonic/gin"
)

const claimsKey = "auth_claims"

// bearerToken reads "Authorization: Bearer <t>" and falls back to the
// ?token= query parameter, which is the only option EventSource has.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// AuthMiddleware requires a valid token and stores its claims.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			reject(c, errors.NewUnauthorizedError("authorization token required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			reject(c, ToAppError(err))
			return
		}

		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID.String()))
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(c *gin.Context) (*services.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*services.Claims)
	return claims, ok
}
