// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the flat access-control role of an account.
type Role string

// Account roles. RoleAnonymous exists only as a policy subject for
// unauthenticated callers; it is never assignable to an account.
const (
	RoleAnonymous     Role = "ANONYMOUS"
	RoleAuthenticated Role = "AUTHENTICATED"
	RoleManager       Role = "MANAGER"
	RoleAdmin         Role = "ADMIN"
)

// Assignable reports whether the role may be stored on an account.
func (r Role) Assignable() bool {
	switch r {
	case RoleAuthenticated, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a claim or request string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Assignable() && r != RoleAnonymous {
		return "", oops.Code(CodeValidationFailed).
			With("role", s).
			Errorf("unknown role")
	}
	return r, nil
}

// Account represents a registered identity.
type Account struct {
	ID           ulid.ULID
	Email        string
	Nickname     string
	PasswordHash string
	Role         Role
	Verified     bool
	FailedLogins int
	Locked       bool
	Bio          *string
	GitHubURL    *string
	LinkedInURL  *string
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLocked reports whether the account is locked. The lock is sticky:
// it is cleared only by an explicit administrative unlock, never by a
// successful login or by time.
func (a *Account) IsLocked() bool {
	return a.Locked
}

// Unlock clears the lock and the failure counter. Administrative action only.
func (a *Account) Unlock() {
	a.Locked = false
	a.FailedLogins = 0
	a.UpdatedAt = time.Now()
}

// ProfileUpdate carries the self-service mutable profile fields.
// Nil pointers leave the corresponding field untouched.
type ProfileUpdate struct {
	Nickname    *string
	Bio         *string
	GitHubURL   *string
	LinkedInURL *string
}

// ValidateEmail checks that email is a syntactically valid address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodeValidationFailed).
			With("field", "email").
			Errorf("invalid email address")
	}
	return nil
}

// NormalizeEmail lowercases an address for case-insensitive comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordPolicy is the configurable complexity policy applied at
// registration. The zero value enforces the defaults.
type PasswordPolicy struct {
	MinLength    int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
}

// DefaultPasswordPolicy requires 8+ characters with mixed classes.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:    8,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Validate checks password against the policy.
func (p PasswordPolicy) Validate(password string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultPasswordPolicy().MinLength
	}
	if len(password) < minLen {
		return oops.Code(CodeValidationFailed).
			With("field", "password").
			With("min_length", minLen).
			Errorf("password must be at least %d characters", minLen)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	switch {
	case p.RequireUpper && !hasUpper:
		return passwordClassError("an uppercase letter")
	case p.RequireLower && !hasLower:
		return passwordClassError("a lowercase letter")
	case p.RequireDigit && !hasDigit:
		return passwordClassError("a digit")
	}
	return nil
}

func passwordClassError(class string) error {
	return oops.Code(CodeValidationFailed).
		With("field", "password").
		Errorf("password must contain %s", class)
}

// validateProfileURL accepts empty strings and absolute http(s) URLs.
func validateProfileURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return oops.Code(CodeValidationFailed).
			With("field", field).
			Errorf("%s must be an absolute http(s) URL", field)
	}
	return nil
}

// AccountRepository manages account persistence.
//
// Implementations must provide per-account read-then-write atomicity for
// RecordAttempt so concurrent logins cannot lose counter increments.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateEmail when the
	// email is already present under case-insensitive comparison.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	// Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update persists mutated account state.
	Update(ctx context.Context, account *Account) error

	// RecordAttempt loads the account under a row lock, applies fn, and
	// persists the result in the same transaction.
	RecordAttempt(ctx context.Context, id ulid.ULID, fn func(*Account)) (*Account, error)

	// List returns accounts ordered by creation time.
	List(ctx context.Context, offset, limit int) ([]*Account, error)

	// Count returns the total number of accounts.
	Count(ctx context.Context) (int64, error)

	// Delete removes an account. Deletion is terminal; there is no
	// soft-delete state. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id ulid.ULID) error
}
