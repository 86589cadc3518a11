// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import "errors"

// ErrNotFound is returned by repositories when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by repositories when an account with the
// same email (case-insensitive) already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// Error codes attached to oops errors produced by this package. The HTTP
// boundary maps codes to status outcomes; tests assert on them.
const (
	// CodeValidationFailed marks malformed, client-fixable input.
	CodeValidationFailed = "AUTH_VALIDATION_FAILED"

	// CodeDuplicateEmail marks a registration conflict.
	CodeDuplicateEmail = "AUTH_DUPLICATE_EMAIL"

	// CodeInvalidCredentials is returned for both an unknown email and a
	// wrong password. The two cases are deliberately indistinguishable so
	// callers cannot enumerate accounts.
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"

	// CodeAccountLocked marks a login rejected because the account is
	// locked, regardless of password correctness.
	CodeAccountLocked = "AUTH_ACCOUNT_LOCKED"

	// CodeAccountUnverified marks a login before email verification.
	CodeAccountUnverified = "AUTH_ACCOUNT_UNVERIFIED"

	// CodeInvalidToken marks a bearer token that failed signature,
	// structure, or expiry checks.
	CodeInvalidToken = "AUTH_INVALID_TOKEN"

	// CodeUnauthenticated marks a request whose caller identity could not
	// be established from the presented token.
	CodeUnauthenticated = "AUTH_UNAUTHENTICATED"

	// CodeForbidden marks an authenticated caller denied by access policy.
	CodeForbidden = "ACCESS_FORBIDDEN"

	// CodeInternal marks an upstream dependency failure surfaced without
	// internal detail.
	CodeInternal = "AUTH_INTERNAL"
)
