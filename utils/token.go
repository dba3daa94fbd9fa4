package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims identifies the signed-in account
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates session tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken generates a JWT token for the user
func (t *TokenIssuer) GenerateToken(userID, email string) (string, error) {
	if len(t.secret) == 0 {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}

	now := t.now()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken parses and validates the token
func (t *TokenIssuer) ValidateToken(tokenString string) (*SessionClaims, error) {
	if len(t.secret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
