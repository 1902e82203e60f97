// Package password hashes and verifies user passwords with bcrypt.
//
// Verification never returns an error to callers: a malformed digest, a
// truncated hash, or an algorithm mismatch is indistinguishable from a wrong
// password. This keeps the login path free of error-based oracles.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinCost is the lowest cost accepted for new hashes.
	MinCost = bcrypt.DefaultCost
	// MaxCost bounds cost to keep hashing latency sane.
	MaxCost = 15
)

// Hash returns a bcrypt digest of plain using the default cost.
func Hash(plain string) (string, error) {
	return HashWithCost(plain, bcrypt.DefaultCost)
}

// HashWithCost returns a bcrypt digest of plain with an explicit cost,
// clamped to [MinCost, MaxCost].
func HashWithCost(plain string, cost int) (string, error) {
	if cost < MinCost {
		cost = MinCost
	}
	if cost > MaxCost {
		cost = MaxCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches the bcrypt digest.
// Any failure (mismatch, malformed digest, unsupported version) is false.
func Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
