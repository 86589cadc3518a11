// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// VerificationTokenBytes is the entropy of a verification token.
const VerificationTokenBytes = 32

// Verification is a pending email-verification token. Only the hash is
// stored; the plaintext token goes out in the verification mail.
type Verification struct {
	AccountID ulid.ULID
	TokenHash string
	CreatedAt time.Time
}

// NewVerificationToken creates a random verification token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func NewVerificationToken() (token, hash string, err error) {
	buf := make([]byte, VerificationTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code(CodeInternal).
			With("operation", "generate verification token").
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, HashVerificationToken(token), nil
}

// HashVerificationToken computes the SHA256 hash of a token for storage.
func HashVerificationToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// MatchVerificationToken compares a plaintext token to a stored hash in
// constant time.
func MatchVerificationToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashVerificationToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// VerificationRepository manages pending verification persistence.
type VerificationRepository interface {
	// Create stores a pending verification, replacing any earlier one
	// for the same account.
	Create(ctx context.Context, v *Verification) error

	// GetByAccount retrieves the pending verification for an account.
	// Returns ErrNotFound if absent.
	GetByAccount(ctx context.Context, accountID ulid.ULID) (*Verification, error)

	// Delete removes the pending verification for an account.
	Delete(ctx context.Context, accountID ulid.ULID) error
}

// Mailer dispatches the verification mail. Implementations live in
// internal/mail.
type Mailer interface {
	SendVerification(ctx context.Context, to, nickname, token string) error
}
