// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package auth implements the account authentication core.
//
// # Domain Types
//
// Account is the aggregate for a registered identity. Create one
// through Service.Register rather than direct struct initialization;
// the constructor path validates the email, applies the password
// policy, and hashes the credential.
//
// # Components
//
//   - PasswordHasher / Argon2idHasher - one-way credential hashing
//   - TokenService - issues and verifies signed bearer tokens
//   - LockPolicy - consecutive-failure counting and sticky lockout
//   - Service - registration, login, and request authorization flows
//
// Persistence is delegated to AccountRepository and
// VerificationRepository; Postgres implementations live in the
// postgres subpackage.
package auth
