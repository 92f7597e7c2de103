package evaluation

import "encoding/json"

// Reason codes explain how a flag resolved.
const (
	ReasonFlagOff             = "flag_off"
	ReasonRuleMatch           = "rule_match"
	ReasonFallthroughRollout  = "fallthrough_rollout"
	ReasonFallthroughExcluded = "fallthrough_excluded"
	ReasonNoState             = "no_state"
)

// Result is the outcome of resolving one flag for one user.
type Result struct {
	Value  json.RawMessage `json:"value"`
	Reason string          `json:"reason"`
	RuleID string          `json:"rule_id,omitempty"`
}

// Resolve walks a flag state's rule chain for the given user.
//
// Disabled states short-circuit to the off variation. Otherwise rules
// are tried in their frozen (priority, id) order: a rule claims the
// user only when all its clauses match AND the user's bucket falls
// inside the rule's own rollout. A clause match with a rollout miss
// does not end the evaluation; the next rule still gets its chance.
// When no rule claims the user, the state's default rollout decides
// between the default and off variations.
func Resolve(state *FlagState, user UserContext) Result {
	if state == nil {
		return Result{Value: json.RawMessage("null"), Reason: ReasonNoState}
	}

	if !state.Enabled {
		return Result{Value: state.OffVariation, Reason: ReasonFlagOff}
	}

	for i := range state.Rules {
		rule := &state.Rules[i]
		if !rule.matches(user) {
			continue
		}
		if InRollout(rule.ID.String(), user.Key, rule.Rollout) {
			return Result{
				Value:  rule.Variation,
				Reason: ReasonRuleMatch,
				RuleID: rule.ID.String(),
			}
		}
		// Matched but excluded by this rule's rollout: the rule does
		// not claim the user, later rules may.
	}

	if InRollout(state.ID.String(), user.Key, state.DefaultRollout) {
		return Result{Value: state.DefaultVariation, Reason: ReasonFallthroughRollout}
	}
	return Result{Value: state.OffVariation, Reason: ReasonFallthroughExcluded}
}
