package evaluation

import (
	"github.com/cespare/xxhash/v2"
)

// bucketCount is the resolution of rollout bucketing. Inclusion at a
// percentage p is bucket < p*100, so growing p from 20 to 30 only adds
// users and never evicts one already inside.
const bucketCount = 10000

// scopeSeparator is a byte that cannot occur in a snowflake ID string
// or a trimmed user key, so distinct (scope, key) pairs never collide
// on concatenation.
const scopeSeparator = 0x1f

// Bucket maps (scopeID, userKey) onto [0, 9999] deterministically.
// The scope ID must be derived from a durable identifier (rule or flag
// state ID), never from editable fields, so bucket assignments survive
// unrelated edits.
func Bucket(scopeID, userKey string) int {
	d := xxhash.New()
	_, _ = d.WriteString(scopeID)
	_, _ = d.Write([]byte{scopeSeparator})
	_, _ = d.WriteString(userKey)
	return int(d.Sum64() % bucketCount)
}

// InRollout reports whether userKey falls inside a percentage rollout
// for the given scope. Monotone in percentage for a fixed (scope, key).
func InRollout(scopeID, userKey string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= 100 {
		return true
	}
	return Bucket(scopeID, userKey) < percentage*100
}
