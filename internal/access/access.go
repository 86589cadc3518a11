// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package access provides role-based authorization for accountd.
//
// Decisions are a pure function of (caller role, operation, resource
// owner, caller identity). Roles map to permission patterns matched
// against "operation:ownerID" strings; absence of a matching allow rule
// is a deny (default-deny posture).
package access

// Operations authorized by the policy table.
const (
	OpAccountCreate = "account:create"
	OpAccountRead   = "account:read"
	OpAccountUpdate = "account:update"
	OpAccountDelete = "account:delete"
	OpAccountList   = "account:list"
	OpRoleChange    = "account:role"
	OpAccountUnlock = "account:unlock"
	OpAvatarUpload  = "avatar:upload"
)

// Authorizer decides whether a caller may perform an operation.
type Authorizer interface {
	// Authorize returns true if a caller holding role may perform
	// operation on the resource owned by ownerID. ownerID is empty for
	// collection-level operations such as listing; callerID is the
	// authenticated caller's account ID.
	Authorize(role, operation, ownerID, callerID string) bool
}

// DefaultRoles returns the built-in policy table.
//
// Patterns use ':' as segment separator; '*' matches one segment, '**'
// matches any suffix, and '$self' resolves to the caller's ID, which is
// how self-service ownership is expressed.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"ADMIN": {
			"**",
		},
		"MANAGER": {
			"account:list:**",
			"account:read:**",
			"account:update:$self",
			"avatar:upload:$self",
		},
		"AUTHENTICATED": {
			"account:read:$self",
			"account:update:$self",
			"avatar:upload:$self",
		},
		// ANONYMOUS holds no grants: registration and login are not
		// policy-gated operations.
		"ANONYMOUS": {},
	}
}
