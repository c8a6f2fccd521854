package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// DefaultTokenTTL is the session token lifetime.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the verified identity carried by a session token.
type Claims struct {
	UserID    int64
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// RevocationSet is the persistent registry of logged-out token ids. Verify
// consults it so that logout actually kills a token instead of only removing
// it from the client's storage.
type RevocationSet interface {
	RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Tokens issues and verifies signed session tokens. It is stateless beyond
// the shared signing secret and the revocation set.
type Tokens struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationSet
}

// NewTokens creates a token issuer/verifier. A zero ttl means DefaultTokenTTL.
func NewTokens(secret string, ttl time.Duration, revoked RevocationSet) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
	}
}

type tokenClaims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Issue creates a signed token for the given subject, expiring ttl from now.
func (t *Tokens) Issue(ctx context.Context, userID int64, email, name string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.Must(uuid.NewV7()).String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			Issuer:    "authd",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string. It fails with ErrInvalidToken
// if the signature does not match, the token is malformed, or it has
// expired, and with ErrTokenRevoked if the token was logged out.
func (t *Tokens) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if t.revoked != nil && claims.ID != "" {
		revoked, err := t.revoked.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		TokenID:   claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// Revoke adds a verified token to the revocation set. The token stays dead
// for the remainder of its validity window; expired entries are swept by
// the purge loop.
func (t *Tokens) Revoke(ctx context.Context, c *Claims) error {
	if t.revoked == nil || c.TokenID == "" {
		return nil
	}
	return t.revoked.RevokeToken(ctx, c.TokenID, c.UserID, c.ExpiresAt)
}
