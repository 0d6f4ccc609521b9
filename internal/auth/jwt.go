// Package auth - jwt.go handles session token signing and verification with a
// shared HMAC secret that is injected once at startup.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is the fixed lifetime of every issued session token.
	TokenTTL = 7 * 24 * time.Hour

	// TokenIssuer is stamped into the iss claim and required on verification.
	TokenIssuer = "client-portal"

	minRecommendedSecretLength = 32
)

var (
	// ErrTokenInvalid is returned for malformed, mis-signed or otherwise unusable tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for well-formed tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// ConfigurationError reports a fatal startup misconfiguration of the auth layer.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("auth configuration error: %s: %s", e.Setting, e.Reason)
}

// Claims is the signed payload carried by a session token. Only
// CurrentOrganizationID is advisory; account state is re-read on every request.
type Claims struct {
	UserID                string `json:"user_id"`
	Email                 string `json:"email"`
	Role                  Role   `json:"role"`
	Name                  string `json:"name"`
	CurrentOrganizationID string `json:"current_organization_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 session tokens. It is read-only after
// construction and safe for concurrent use.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for iat/exp stamping and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec validates the signing secret and returns a codec bound to it.
// An empty secret is a *ConfigurationError and must abort startup.
func NewTokenCodec(secret string, opts ...CodecOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, &ConfigurationError{
			Setting: "auth.jwt_secret",
			Reason:  "signing secret is required (set PORTAL_AUTH_JWT_SECRET; generate one with: openssl rand -hex 32)",
		}
	}
	if len(secret) < minRecommendedSecretLength {
		slog.Warn("jwt signing secret is shorter than recommended", "min_length", minRecommendedSecretLength)
	}

	c := &TokenCodec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs claims with the codec secret. IssuedAt, ExpiresAt, Issuer and
// Subject are always overwritten; the lifetime is TokenTTL.
func (c *TokenCodec) Issue(claims Claims) (string, error) {
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrTokenInvalid)
	}

	issuedAt := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token. Expired tokens yield ErrTokenExpired;
// every other failure yields ErrTokenInvalid wrapping the parser error.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}

	return claims, nil
}
