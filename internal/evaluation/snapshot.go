package evaluation

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Rule is one ordered override inside a flag state, frozen into a
// snapshot. Rules are never mutated after the snapshot is built; edits
// produce a wholly new snapshot.
type Rule struct {
	ID        snowflake.ID
	Priority  int
	Clauses   []Clause
	Variation json.RawMessage
	Rollout   int
}

// matches reports whether every clause accepts the user (logical AND).
// An empty clause list always matches.
func (r Rule) matches(user UserContext) bool {
	for _, clause := range r.Clauses {
		if !clause.Matches(user) {
			return false
		}
	}
	return true
}

// FlagState is the frozen per-(flag, environment) configuration.
type FlagState struct {
	ID               snowflake.ID
	FlagKey          string
	Enabled          bool
	DefaultRollout   int
	DefaultVariation json.RawMessage
	OffVariation     json.RawMessage

	// Rules are pre-sorted by (priority asc, id asc) at build time.
	Rules []Rule
}

// EnvironmentSnapshot is the immutable view of one environment's flag
// configuration. Safe for unbounded concurrent reads.
type EnvironmentSnapshot struct {
	EnvironmentID  snowflake.ID
	EnvironmentKey string
	ProjectID      snowflake.ID

	// States indexes flag states by flag key. FlagKeys preserves a
	// stable iteration order for whole-environment evaluation.
	States   map[string]*FlagState
	FlagKeys []string
}

// snapshotSet is the unit the store swaps atomically: every
// environment's snapshot plus the SDK-key index used to resolve the
// environment during evaluation.
type snapshotSet struct {
	builtAt      time.Time
	environments map[snowflake.ID]*EnvironmentSnapshot
	byKeyHash    map[string]*EnvironmentSnapshot
}
