package evaluation

import "strings"

// Op is a clause comparison operator.
type Op string

const (
	OpEquals     Op = "equals"
	OpNotEquals  Op = "not_equals"
	OpContains   Op = "contains"
	OpStartsWith Op = "starts_with"
	OpEndsWith   Op = "ends_with"
	OpIn         Op = "in"
	OpNotIn      Op = "not_in"
)

// KnownOp reports whether op is part of the supported operator set.
// Used by write-time validation; the matcher itself fails closed on
// anything else.
func KnownOp(op Op) bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith, OpIn, OpNotIn:
		return true
	default:
		return false
	}
}

// ClauseValue is the tagged variant a stored clause value resolves to
// at snapshot-build time: a scalar string for the comparison ops, an
// ordered string list for in/not_in. It is never re-inferred per
// evaluation.
type ClauseValue struct {
	Scalar string
	List   []string
	IsList bool
}

// Clause is one attribute comparison inside a rule.
type Clause struct {
	Field string
	Op    Op
	Value ClauseValue
}

// Matches evaluates the clause against the user context. It never
// panics on malformed stored data: an unknown op, or a value shape that
// does not fit the op, simply does not match.
//
// A missing field fails every positive assertion and satisfies the
// negative ones: absence cannot prove equality or membership, but it
// does prove "does not equal X".
func (c Clause) Matches(user UserContext) bool {
	value, present := user.Attr(c.Field)

	switch c.Op {
	case OpEquals:
		return present && !c.Value.IsList && value == c.Value.Scalar
	case OpNotEquals:
		if c.Value.IsList {
			return false
		}
		if !present {
			return true
		}
		return value != c.Value.Scalar
	case OpContains:
		return present && !c.Value.IsList && strings.Contains(value, c.Value.Scalar)
	case OpStartsWith:
		return present && !c.Value.IsList && strings.HasPrefix(value, c.Value.Scalar)
	case OpEndsWith:
		return present && !c.Value.IsList && strings.HasSuffix(value, c.Value.Scalar)
	case OpIn:
		return present && c.Value.IsList && containsString(c.Value.List, value)
	case OpNotIn:
		if !c.Value.IsList {
			return false
		}
		if !present {
			return true
		}
		return !containsString(c.Value.List, value)
	default:
		return false
	}
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// UserContext carries the attributes a clause can match against. Key is
// mandatory; everything else is optional and looked up by clause field
// name only when present.
type UserContext struct {
	Key        string
	Attributes map[string]string
}

// Attr resolves a clause field against the context. The reserved field
// "key" always resolves to the user key.
func (u UserContext) Attr(field string) (string, bool) {
	if field == "key" {
		return u.Key, u.Key != ""
	}
	value, ok := u.Attributes[field]
	return value, ok
}
