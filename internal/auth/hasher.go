// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters following the OWASP recommendation.
const (
	argonIterations  = 1
	argonMemoryKiB   = 64 * 1024
	argonParallelism = 4
	argonSaltBytes   = 16
	argonKeyBytes    = 32
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = oops.Code(CodeValidationFailed).Errorf("password cannot be empty")

// PasswordHasher provides one-way credential hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password. Two calls with the
	// same input produce different digests.
	Hash(password string) (string, error)

	// Verify reports whether password matches digest under the digest's
	// own parameters. The comparison is constant-time.
	Verify(password, digest string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id with digests
// encoded in PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type Argon2idHasher struct{}

// NewArgon2idHasher creates an Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id digest with a fresh random salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argonSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code(CodeInternal).With("operation", "generate salt").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argonIterations, argonMemoryKiB, argonParallelism, argonKeyBytes)

	digest := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemoryKiB, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return digest, nil
}

// Verify recomputes the key under the digest's parameters and compares in
// constant time.
func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	salt, key, memory, iterations, parallelism, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(key))) //nolint:gosec // key length bounded by decodeDigest
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// decodeDigest parses a PHC argon2id string into its parameters.
func decodeDigest(digest string) (salt, key []byte, memory, iterations uint32, parallelism uint8, err error) {
	fail := func(format string, args ...any) (s, k []byte, m, i uint32, p uint8, e error) {
		return nil, nil, 0, 0, 0, oops.Code(CodeInternal).
			With("operation", "decode password digest").
			Errorf(format, args...)
	}

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return fail("malformed digest")
	}
	if parts[1] != "argon2id" {
		return fail("unsupported algorithm %q", parts[1])
	}

	var version int
	if _, scanErr := fmt.Sscanf(parts[2], "v=%d", &version); scanErr != nil || version != argon2.Version {
		return fail("unsupported argon2 version")
	}

	var threads uint32
	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); scanErr != nil {
		return fail("malformed parameters")
	}
	if threads == 0 || threads > 255 {
		return fail("parallelism %d out of range", threads)
	}
	parallelism = uint8(threads)

	salt, decErr := base64.RawStdEncoding.DecodeString(parts[4])
	if decErr != nil {
		return fail("malformed salt")
	}
	key, decErr = base64.RawStdEncoding.DecodeString(parts[5])
	if decErr != nil || len(key) == 0 || len(key) > 1024 {
		return fail("malformed key")
	}

	return salt, key, memory, iterations, parallelism, nil
}
