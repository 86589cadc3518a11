// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package access

import (
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// RoleTable implements Authorizer with a static role→permission table.
//
// The table is immutable after construction and requires no
// synchronization; Authorize is safe for concurrent use.
type RoleTable struct {
	roles map[string][]compiledPermission
}

// compiledPermission keeps the source pattern next to its compiled glob.
// Patterns containing $self are recompiled per call after substitution.
type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// NewRoleTable compiles the default policy table. Panics if the built-in
// patterns fail to compile, which is a code bug.
func NewRoleTable() *RoleTable {
	t, err := NewRoleTableWithRoles(DefaultRoles())
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return t
}

// NewRoleTableWithRoles compiles a custom role table. Returns an error if
// any permission pattern has invalid glob syntax.
func NewRoleTableWithRoles(roles map[string][]string) (*RoleTable, error) {
	compiled := make(map[string][]compiledPermission, len(roles))
	for role, patterns := range roles {
		perms := make([]compiledPermission, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			perms = append(perms, compiledPermission{pattern: p, glob: g})
		}
		compiled[role] = perms
	}
	return &RoleTable{roles: compiled}, nil
}

// Authorize implements Authorizer.
func (t *RoleTable) Authorize(role, operation, ownerID, callerID string) bool {
	if role == "" || operation == "" {
		return false
	}

	perms, ok := t.roles[role]
	if !ok {
		return false // unknown role, deny
	}

	requested := operation + ":" + ownerID

	for _, perm := range perms {
		if !strings.Contains(perm.pattern, "$self") {
			if perm.glob.Match(requested) {
				return true
			}
			continue
		}

		// Ownership patterns only grant anything to identified callers.
		if callerID == "" {
			continue
		}
		resolved := strings.ReplaceAll(perm.pattern, "$self", callerID)
		g, err := glob.Compile(resolved, ':')
		if err != nil {
			// Substitution produced an uncompilable pattern; deny the
			// grant rather than the whole request.
			slog.Warn("failed to compile resolved permission pattern",
				"role", role,
				"pattern", perm.pattern,
				"resolved", resolved,
				"error", err)
			continue
		}
		if g.Match(requested) {
			return true
		}
	}

	return false
}
