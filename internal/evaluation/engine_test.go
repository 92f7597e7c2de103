package evaluation

import (
	"encoding/json"
	"fmt"
	"testing"

	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	varOn   = json.RawMessage(`true`)
	varOff  = json.RawMessage(`false`)
	varBeta = json.RawMessage(`"beta"`)
)

func enabledState(id int64, rules ...Rule) *FlagState {
	return &FlagState{
		ID:               snowflake.ID(id),
		FlagKey:          "checkout-redesign",
		Enabled:          true,
		DefaultRollout:   flagdomain.FullRollout,
		DefaultVariation: varOn,
		OffVariation:     varOff,
		Rules:            rules,
	}
}

// userInRollout searches for a user key whose bucket for the given
// scope lands inside (or outside) the rollout percentage.
func userInRollout(t *testing.T, scope string, pct int, inside bool) string {
	t.Helper()
	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("user-%d", i)
		if InRollout(scope, key, pct) == inside {
			return key
		}
	}
	t.Fatalf("no user found with inside=%v for scope %s pct %d", inside, scope, pct)
	return ""
}

func TestResolveNoState(t *testing.T) {
	res := Resolve(nil, user("u-1", nil))

	assert.Equal(t, ReasonNoState, res.Reason)
	assert.Equal(t, json.RawMessage("null"), res.Value)
	assert.Empty(t, res.RuleID)
}

func TestResolveDisabled(t *testing.T) {
	rule := Rule{ID: snowflake.ID(10), Rollout: flagdomain.FullRollout, Variation: varBeta}
	state := enabledState(1, rule)
	state.Enabled = false

	res := Resolve(state, user("u-1", nil))

	assert.Equal(t, ReasonFlagOff, res.Reason)
	assert.Equal(t, varOff, res.Value)
	assert.Empty(t, res.RuleID, "rules are not consulted when the flag is off")
}

func TestResolveRuleMatch(t *testing.T) {
	rule := Rule{
		ID:        snowflake.ID(10),
		Clauses:   []Clause{scalarClause("plan", OpEquals, "pro"), listClause("country", OpIn, "ID")},
		Rollout:   flagdomain.FullRollout,
		Variation: varBeta,
	}
	state := enabledState(1, rule)

	res := Resolve(state, user("u-1", map[string]string{"plan": "pro", "country": "ID"}))
	assert.Equal(t, ReasonRuleMatch, res.Reason)
	assert.Equal(t, varBeta, res.Value)
	assert.Equal(t, "10", res.RuleID)

	// All clauses must match; one miss sends the user to fallthrough.
	res = Resolve(state, user("u-1", map[string]string{"plan": "pro", "country": "US"}))
	assert.Equal(t, ReasonFallthroughRollout, res.Reason)
	assert.Equal(t, varOn, res.Value)
}

func TestResolveRuleOrder(t *testing.T) {
	first := Rule{ID: snowflake.ID(10), Rollout: flagdomain.FullRollout, Variation: json.RawMessage(`"first"`)}
	second := Rule{ID: snowflake.ID(20), Rollout: flagdomain.FullRollout, Variation: json.RawMessage(`"second"`)}
	state := enabledState(1, first, second)

	res := Resolve(state, user("u-1", nil))

	assert.Equal(t, "10", res.RuleID, "earlier rule wins when both match")
	assert.Equal(t, json.RawMessage(`"first"`), res.Value)
}

func TestResolveRolloutExclusionFallsThrough(t *testing.T) {
	partial := Rule{ID: snowflake.ID(10), Rollout: 30, Variation: json.RawMessage(`"partial"`)}
	catchAll := Rule{ID: snowflake.ID(20), Rollout: flagdomain.FullRollout, Variation: json.RawMessage(`"catch-all"`)}
	state := enabledState(1, partial, catchAll)

	excluded := userInRollout(t, partial.ID.String(), 30, false)
	res := Resolve(state, user(excluded, nil))
	require.Equal(t, ReasonRuleMatch, res.Reason)
	assert.Equal(t, "20", res.RuleID, "excluded user falls through to the next rule")

	included := userInRollout(t, partial.ID.String(), 30, true)
	res = Resolve(state, user(included, nil))
	require.Equal(t, ReasonRuleMatch, res.Reason)
	assert.Equal(t, "10", res.RuleID)
}

func TestResolveFallthroughRollout(t *testing.T) {
	state := enabledState(1)
	state.DefaultRollout = 40

	included := userInRollout(t, state.ID.String(), 40, true)
	res := Resolve(state, user(included, nil))
	assert.Equal(t, ReasonFallthroughRollout, res.Reason)
	assert.Equal(t, varOn, res.Value)

	excluded := userInRollout(t, state.ID.String(), 40, false)
	res = Resolve(state, user(excluded, nil))
	assert.Equal(t, ReasonFallthroughExcluded, res.Reason)
	assert.Equal(t, varOff, res.Value)
}

func TestResolveFallthroughEdges(t *testing.T) {
	state := enabledState(1)

	state.DefaultRollout = flagdomain.FullRollout
	res := Resolve(state, user("u-1", nil))
	assert.Equal(t, ReasonFallthroughRollout, res.Reason)

	state.DefaultRollout = 0
	res = Resolve(state, user("u-1", nil))
	assert.Equal(t, ReasonFallthroughExcluded, res.Reason)
	assert.Equal(t, varOff, res.Value)
}

func TestResolveVipPrefixRule(t *testing.T) {
	vip := Rule{
		ID:        snowflake.ID(10),
		Clauses:   []Clause{scalarClause("email", OpStartsWith, "vip_")},
		Rollout:   flagdomain.FullRollout,
		Variation: varBeta,
	}
	state := enabledState(1, vip)
	state.DefaultRollout = 0

	res := Resolve(state, user("u-1", map[string]string{"email": "vip_alice@example.com"}))
	assert.Equal(t, ReasonRuleMatch, res.Reason)
	assert.Equal(t, varBeta, res.Value)

	res = Resolve(state, user("u-2", map[string]string{"email": "bob@example.com"}))
	assert.Equal(t, ReasonFallthroughExcluded, res.Reason)
}
