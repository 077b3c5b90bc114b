package http

import (
	"net/http"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/services"
	"sprinta/internal/infrastructure/middleware"
	"sprinta/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthHandler lets a service-role caller mint tokens for users.
type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/auth/token", h.IssueToken)
}

type tokenRequest struct {
	UserID domain.UserID   `json:"userId"`
	Role   domain.UserRole `json:"role"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("authorization token required"))
		return
	}
	if claims.Role != domain.RoleService {
		_ = c.Error(errors.NewForbiddenError("only service callers may issue tokens"))
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid JSON body"))
		return
	}
	userID, err := userIDParam(string(req.UserID))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if req.Role != "" && req.Role != domain.RoleUser && req.Role != domain.RoleService {
		_ = c.Error(errors.NewInvalidInputError("role must be user or service"))
		return
	}

	token, err := h.authService.GenerateToken(userID, req.Role)
	if err != nil {
		_ = c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresIn": int(h.tokenTTL / time.Second),
	})
}
