package services

import (
	"errors"
	"time"

	"sprinta/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "sprinta"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrForbidden    = errors.New("token not valid for this user")
)

type AuthService interface {
	GenerateToken(userID domain.UserID, role domain.UserRole) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	// Authorize checks that claims may act on target's notifications.
	Authorize(claims *Claims, target domain.UserID) error
}

type Claims struct {
	UserID domain.UserID   `json:"user_id"`
	Role   domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

func (s *authService) GenerateToken(userID domain.UserID, role domain.UserRole) (string, error) {
	if userID == "" {
		return "", domain.ErrMissingUserID
	}
	if role == "" {
		role = domain.RoleUser
	}
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) Authorize(claims *Claims, target domain.UserID) error {
	if claims == nil {
		return ErrInvalidToken
	}
	if claims.Role == domain.RoleService || claims.UserID == target {
		return nil
	}
	return ErrForbidden
}
