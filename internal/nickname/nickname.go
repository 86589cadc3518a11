// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package nickname generates display nicknames for new accounts.
package nickname

import (
	"fmt"
	"math/rand/v2"
)

var adjectives = []string{
	"amber", "bold", "calm", "deft", "eager", "fleet", "glad",
	"keen", "lucid", "mellow", "nimble", "quiet", "swift", "vivid",
}

var animals = []string{
	"badger", "crane", "dolphin", "falcon", "heron", "lynx",
	"marten", "otter", "puffin", "raven", "stoat", "wren",
}

// Generate returns a nickname of the form adjective_animal_NNN.
// Uniqueness is not guaranteed; accounts are keyed by email, and the
// nickname is cosmetic.
func Generate() string {
	return fmt.Sprintf("%s_%s_%03d",
		adjectives[rand.IntN(len(adjectives))],
		animals[rand.IntN(len(animals))],
		rand.IntN(1000))
}
