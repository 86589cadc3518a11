// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import "time"

// DefaultLockThreshold is the number of consecutive failed logins after
// which an account is locked.
const DefaultLockThreshold = 5

// LockPolicy derives the locked state of an account from its
// consecutive-failure counter.
//
// State machine: UNLOCKED --[threshold-th consecutive failure]--> LOCKED.
// LOCKED transitions back to UNLOCKED only through Account.Unlock; a
// successful authentication resets the counter but never clears the lock.
type LockPolicy struct {
	// Threshold is the failure count that triggers the lock.
	// Zero or negative means DefaultLockThreshold.
	Threshold int
}

func (p LockPolicy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultLockThreshold
	}
	return p.Threshold
}

// RecordFailure increments the failure counter and locks the account
// once the counter reaches the threshold.
func (p LockPolicy) RecordFailure(a *Account) {
	a.FailedLogins++
	if a.FailedLogins >= p.threshold() {
		a.Locked = true
	}
	a.UpdatedAt = time.Now()
}

// RecordSuccess resets the failure counter. An already-locked account
// stays locked.
func (p LockPolicy) RecordSuccess(a *Account) {
	a.FailedLogins = 0
	a.UpdatedAt = time.Now()
}
