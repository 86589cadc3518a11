// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the bearer token lifetime when none is configured.
const DefaultTokenTTL = 15 * time.Minute

// Claims are the statements carried by a bearer token. The role claim is
// a snapshot taken at issuance; role changes after issuance do not
// invalidate outstanding tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenConfig holds the immutable signing configuration. The secret is
// process-wide; rotating it invalidates all previously issued tokens.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// TokenService issues and verifies signed, self-contained bearer tokens.
// It is stateless and safe for concurrent use; the signing key is
// read-only after construction.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. The secret is required.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("token signing secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: cfg.Secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject carrying the role claim. Expiry is
// issued-at plus the configured TTL.
func (s *TokenService) Issue(subject string, role Role) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: string(role),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", oops.Code(CodeInternal).With("operation", "sign token").Wrap(err)
	}
	return signed, nil
}

// Decode verifies signature, structure, and expiry and returns the
// claims. It deliberately does not check that the subject still exists;
// a decoded token yields claims, not a live account.
func (s *TokenService) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil || !token.Valid {
		return nil, oops.Code(CodeInvalidToken).Errorf("invalid token")
	}
	return claims, nil
}
