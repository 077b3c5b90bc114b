package middleware

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/services"
	"sprinta/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func errorRouter(err error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	r.GET("/fail", func(c *gin.Context) { _ = c.Error(err) })
	return r
}

func decodeBody(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestErrorHandlerMiddleware_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   errors.ErrorCode
	}{
		{"app error", errors.NewMissingParameterError("userId"), http.StatusBadRequest, errors.ErrCodeMissingParameter},
		{"not found", fmt.Errorf("lookup: %w", domain.ErrNotificationNotFound), http.StatusNotFound, errors.ErrCodeNotFound},
		{"invalid", domain.ErrInvalidNotification, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"missing user", domain.ErrMissingUserID, http.StatusBadRequest, errors.ErrCodeMissingParameter},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, errors.ErrCodeForbidden},
		{"expired", services.ErrExpiredToken, http.StatusUnauthorized, errors.ErrCodeUnauthorized},
		{"unknown", stderrors.New("connection reset"), http.StatusInternalServerError, errors.ErrCodeStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(errorRouter(tt.err), http.MethodGet, "/fail", nil)
			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w.Body.Bytes())
			assert.Equal(t, string(tt.code), body["error"])
			assert.NotEmpty(t, body["message"])
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestErrorHandlerMiddleware_DetailsAndNoLeak(t *testing.T) {
	w := serve(errorRouter(errors.NewMissingParameterError("userId")), http.MethodGet, "/fail", nil)
	body := decodeBody(t, w.Body.Bytes())
	assert.Equal(t, map[string]interface{}{"parameter": "userId"}, body["details"])

	w = serve(errorRouter(stderrors.New("dial tcp 10.0.0.5:6379: refused")), http.MethodGet, "/fail", nil)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestErrorHandlerMiddleware_LogsContextIDs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auth := services.NewAuthService("secret", time.Hour)
	token, err := auth.GenerateToken("42", domain.RoleUser)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), ErrorHandlerMiddleware(zap.New(core).Sugar()), AuthMiddleware(auth))
	r.GET("/fail", func(c *gin.Context) { _ = c.Error(domain.ErrNotificationNotFound) })

	w := serve(r, http.MethodGet, "/fail", http.Header{
		RequestIDHeader: []string{"req-9"},
		"Authorization": []string{"Bearer " + token},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	entries := logs.FilterMessage("Request rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "42", fields["caller_id"])
	assert.Equal(t, "/fail", fields["path"])
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop().Sugar()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeInternal))
}

func TestRequestIDMiddleware_PropagatesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := serve(r, http.MethodGet, "/", http.Header{RequestIDHeader: []string{"abc-123"}})
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func authRouter(auth services.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(auth))
	r.GET("/me", func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.UserID.String())
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService("secret", time.Hour)
	token, err := auth.GenerateToken("42", domain.RoleUser)
	require.NoError(t, err)
	r := authRouter(auth)

	w := serve(r, http.MethodGet, "/me", http.Header{"Authorization": []string{"Bearer " + token}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = serve(r, http.MethodGet, "/me?token="+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", http.Header{"Authorization": []string{"Basic Zm9vOmJhcg=="}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", http.Header{"Authorization": []string{"Bearer garbage"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeUnauthorized))
}
