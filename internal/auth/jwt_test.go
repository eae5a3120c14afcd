package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(expiresAt time.Time) Claims {
	return Claims{
		UserID: "user-456",
		Email:  "test@example.com",
		Role:   "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   "user-456",
		},
	}
}

func TestTokenParser_Verified(t *testing.T) {
	parser := NewTokenParser(testSecret)
	expiresAt := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := signToken(t, testSecret, validClaims(expiresAt))

	user, err := parser.ParseUser(token)

	require.NoError(t, err)
	assert.True(t, parser.Verifies())
	assert.Equal(t, "user-456", user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "customer", user.Role)
	assert.Equal(t, token, user.Token)
	assert.True(t, expiresAt.Equal(user.ExpiresAt))
}

func TestTokenParser_BearerPrefix(t *testing.T) {
	parser := NewTokenParser(testSecret)
	token := signToken(t, testSecret, validClaims(time.Now().Add(time.Hour)))

	user, err := parser.ParseUser("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, token, user.Token)
}

func TestTokenParser_WrongSecret(t *testing.T) {
	parser := NewTokenParser(testSecret)
	token := signToken(t, "another-secret-key-entirely-different", validClaims(time.Now().Add(time.Hour)))

	_, err := parser.ParseUser(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenParser_Expired(t *testing.T) {
	token := signToken(t, testSecret, validClaims(time.Now().Add(-time.Minute)))

	_, err := NewTokenParser(testSecret).ParseUser(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = NewTokenParser("").ParseUser(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenParser_UnverifiedAcceptsAnySignature(t *testing.T) {
	parser := NewTokenParser("")
	token := signToken(t, "server-side-secret-unknown-to-client", validClaims(time.Now().Add(time.Hour)))

	user, err := parser.ParseUser(token)

	require.NoError(t, err)
	assert.False(t, parser.Verifies())
	assert.Equal(t, "user-456", user.ID)
}

func TestTokenParser_SubjectFallback(t *testing.T) {
	claims := validClaims(time.Now().Add(time.Hour))
	claims.UserID = ""
	claims.Subject = "user-from-sub"
	token := signToken(t, testSecret, claims)

	user, err := NewTokenParser(testSecret).ParseUser(token)

	require.NoError(t, err)
	assert.Equal(t, "user-from-sub", user.ID)
}

func TestTokenParser_Rejects(t *testing.T) {
	noUser := validClaims(time.Now().Add(time.Hour))
	noUser.UserID = ""
	noUser.Subject = ""

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"bearer only", "Bearer ", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"no user", signToken(t, testSecret, noUser), ErrMissingUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenParser("").ParseUser(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenParser_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(time.Now().Add(time.Hour)))
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenParser(testSecret).ParseUser(signed)

	assert.ErrorIs(t, err, ErrInvalidToken)
}
