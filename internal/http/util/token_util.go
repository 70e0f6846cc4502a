package util

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// TokenVerifier validates HS256 bearer tokens minted by the auth service.
// The subject claim carries the user id.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier returns a verifier; an empty issuer skips the issuer check.
func NewTokenVerifier(secret []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret: secret,
		issuer: issuer,
	}
}

// Issue mints a token for userID. The service itself only verifies; Issue is
// used by tooling and tests.
func (v *TokenVerifier) Issue(userID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    v.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Validate checks signature, expiry and issuer and returns the user id.
func (v *TokenVerifier) Validate(token string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
