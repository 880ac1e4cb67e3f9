// Package auth issues and validates the HS256 tokens that carry a tenant's customer id.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "bluewise"

// DefaultTokenDuration is the lifetime of tokens issued without an explicit ttl
const DefaultTokenDuration = 24 * time.Hour

// TokenService handles JWT token creation and validation
type TokenService struct {
	secretKey []byte
	now       func() time.Time
}

// JWTClaims represents the claims in our JWT tokens
type JWTClaims struct {
	CustomerID int64 `json:"customer_id"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string) *TokenService {
	return &TokenService{secretKey: []byte(secretKey), now: time.Now}
}

// IssueToken signs a token for customerID valid for ttl
func (ts *TokenService) IssueToken(customerID int64, ttl time.Duration) (string, error) {
	if customerID <= 0 {
		return "", fmt.Errorf("customer id must be positive, got %d", customerID)
	}
	if ttl <= 0 {
		ttl = DefaultTokenDuration
	}
	now := ts.now()
	claims := &JWTClaims{
		CustomerID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(customerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and returns its claims
func (ts *TokenService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.CustomerID <= 0 {
		return nil, errors.New("token carries no customer id")
	}
	return claims, nil
}
