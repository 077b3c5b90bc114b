package services

import (
	"testing"
	"time"

	"sprinta/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token, err := svc.GenerateToken("42", "")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("42"), claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestAuthService_RejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)
	other := NewAuthService("other-secret", time.Hour)

	token, err := other.GenerateToken("42", domain.RoleUser)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	short := NewAuthService("secret", time.Minute).(*authService)
	short.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err = short.GenerateToken("42", domain.RoleUser)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_GenerateRequiresUser(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)
	_, err := svc.GenerateToken("", domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrMissingUserID)
}

func TestAuthService_Authorize(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	user := &Claims{UserID: "42", Role: domain.RoleUser}
	producer := &Claims{UserID: "backend", Role: domain.RoleService}

	assert.NoError(t, svc.Authorize(user, "42"))
	assert.ErrorIs(t, svc.Authorize(user, "43"), ErrForbidden)
	assert.NoError(t, svc.Authorize(producer, "43"))
	assert.ErrorIs(t, svc.Authorize(nil, "42"), ErrInvalidToken)
}
