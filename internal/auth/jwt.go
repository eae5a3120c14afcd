// Package auth turns the storefront access token into the session user.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("access token is required")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingUser  = errors.New("token carries no user id")
)

// Claims represents the storefront JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// User is the authenticated customer a cart session belongs to.
type User struct {
	ID    string
	Email string
	Role  string
	// Token is sent as the bearer credential on every backend call.
	Token     string
	ExpiresAt time.Time
}

// TokenParser extracts the user from an access token. The backend is
// the party that enforces the signature; with a secret configured the
// client verifies it as well.
type TokenParser struct {
	secretKey []byte
	now       func() time.Time
}

// NewTokenParser creates a parser. An empty secret skips signature
// verification but still rejects expired tokens.
func NewTokenParser(secretKey string) *TokenParser {
	return &TokenParser{
		secretKey: []byte(secretKey),
		now:       time.Now,
	}
}

// Verifies reports whether signatures are checked.
func (p *TokenParser) Verifies() bool {
	return len(p.secretKey) > 0
}

// ParseUser validates tokenString and returns its user.
func (p *TokenParser) ParseUser(tokenString string) (User, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return User{}, ErrMissingToken
	}

	claims, err := p.parse(tokenString)
	if err != nil {
		return User{}, err
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return User{}, ErrMissingUser
	}

	user := User{
		ID:    userID,
		Email: claims.Email,
		Role:  claims.Role,
		Token: tokenString,
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user, nil
}

func (p *TokenParser) parse(tokenString string) (*Claims, error) {
	if !p.Verifies() {
		claims := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, ErrInvalidToken
		}
		if claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(p.now()) {
			return nil, ErrExpiredToken
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secretKey, nil
	}, jwt.WithTimeFunc(p.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
