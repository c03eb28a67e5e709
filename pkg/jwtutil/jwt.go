package jwtutil

import (
	"time"

	"farmmarket/internal/model"
	"farmmarket/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	secret     []byte
	expiration = 24 * time.Hour
)

// Initialize configures the signing key and token lifetime.
func Initialize(cfg *config.JWTConfig) {
	secret = []byte(cfg.SigningKey)
	if cfg.ExpirationHours > 0 {
		expiration = time.Duration(cfg.ExpirationHours) * time.Hour
	}
}

// UserClaims represents the JWT claims for an authenticated user
type UserClaims struct {
	Username string     `json:"username"`
	UserID   uint       `json:"user_id"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token with user identity and role
func GenerateToken(username string, userID uint, role model.Role) (string, error) {
	claims := UserClaims{
		Username: username,
		UserID:   userID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
