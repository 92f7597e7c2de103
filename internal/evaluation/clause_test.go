package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func user(key string, attrs map[string]string) UserContext {
	return UserContext{Key: key, Attributes: attrs}
}

func scalarClause(field string, op Op, value string) Clause {
	return Clause{Field: field, Op: op, Value: ClauseValue{Scalar: value}}
}

func listClause(field string, op Op, values ...string) Clause {
	return Clause{Field: field, Op: op, Value: ClauseValue{List: values, IsList: true}}
}

func TestClauseEquals(t *testing.T) {
	c := scalarClause("country", OpEquals, "ID")

	assert.True(t, c.Matches(user("u", map[string]string{"country": "ID"})))
	assert.False(t, c.Matches(user("u", map[string]string{"country": "SG"})))
	assert.False(t, c.Matches(user("u", nil)), "missing field fails equals")
}

func TestClauseNotEquals(t *testing.T) {
	c := scalarClause("country", OpNotEquals, "ID")

	assert.False(t, c.Matches(user("u", map[string]string{"country": "ID"})))
	assert.True(t, c.Matches(user("u", map[string]string{"country": "SG"})))
	assert.True(t, c.Matches(user("u", nil)), "missing field satisfies not_equals")
}

func TestClauseSubstringOps(t *testing.T) {
	attrs := map[string]string{"email": "vip_alice@example.com"}

	assert.True(t, scalarClause("email", OpContains, "alice").Matches(user("u", attrs)))
	assert.False(t, scalarClause("email", OpContains, "bob").Matches(user("u", attrs)))
	assert.True(t, scalarClause("email", OpStartsWith, "vip_").Matches(user("u", attrs)))
	assert.False(t, scalarClause("email", OpStartsWith, "admin_").Matches(user("u", attrs)))
	assert.True(t, scalarClause("email", OpEndsWith, "@example.com").Matches(user("u", attrs)))
	assert.False(t, scalarClause("email", OpEndsWith, "@other.com").Matches(user("u", attrs)))

	assert.False(t, scalarClause("email", OpContains, "x").Matches(user("u", nil)))
	assert.False(t, scalarClause("email", OpStartsWith, "x").Matches(user("u", nil)))
	assert.False(t, scalarClause("email", OpEndsWith, "x").Matches(user("u", nil)))
}

func TestClauseIn(t *testing.T) {
	c := listClause("country", OpIn, "ID", "SG")

	assert.True(t, c.Matches(user("u", map[string]string{"country": "SG"})))
	assert.False(t, c.Matches(user("u", map[string]string{"country": "US"})))
	assert.False(t, c.Matches(user("u", nil)), "missing field fails in")
	assert.False(t, listClause("country", OpIn).Matches(user("u", map[string]string{"country": "ID"})),
		"empty list matches nothing")
}

func TestClauseNotIn(t *testing.T) {
	c := listClause("country", OpNotIn, "ID", "SG")

	assert.False(t, c.Matches(user("u", map[string]string{"country": "SG"})))
	assert.True(t, c.Matches(user("u", map[string]string{"country": "US"})))
	assert.True(t, c.Matches(user("u", nil)), "missing field satisfies not_in")
	assert.True(t, listClause("country", OpNotIn).Matches(user("u", map[string]string{"country": "ID"})),
		"empty list excludes nothing")
}

func TestClauseKeyField(t *testing.T) {
	c := scalarClause("key", OpStartsWith, "vip_")

	assert.True(t, c.Matches(user("vip_alice", nil)))
	assert.False(t, c.Matches(user("alice", nil)))
}

func TestClauseFailsClosed(t *testing.T) {
	unknown := Clause{Field: "country", Op: Op("matches_regex"), Value: ClauseValue{Scalar: ".*"}}
	assert.False(t, unknown.Matches(user("u", map[string]string{"country": "ID"})))

	// Value shape that does not fit the op never matches.
	listForScalar := Clause{Field: "country", Op: OpEquals, Value: ClauseValue{List: []string{"ID"}, IsList: true}}
	assert.False(t, listForScalar.Matches(user("u", map[string]string{"country": "ID"})))

	scalarForList := Clause{Field: "country", Op: OpIn, Value: ClauseValue{Scalar: "ID"}}
	assert.False(t, scalarForList.Matches(user("u", map[string]string{"country": "ID"})))
}

func TestParseClauses(t *testing.T) {
	clauses, err := ParseClauses([]byte(`[
		{"attribute": "country", "op": "in", "values": ["ID", "SG"]},
		{"attribute": "plan", "op": "equals", "value": "pro"}
	]`))
	assert.NoError(t, err)
	assert.Len(t, clauses, 2)
	assert.True(t, clauses[0].Value.IsList)
	assert.False(t, clauses[1].Value.IsList)
	assert.Equal(t, "pro", clauses[1].Value.Scalar)
}

func TestParseClausesRejectsBadSpecs(t *testing.T) {
	cases := map[string]string{
		"unknown op":         `[{"attribute": "a", "op": "regex", "value": "x"}]`,
		"missing attribute":  `[{"op": "equals", "value": "x"}]`,
		"in without values":  `[{"attribute": "a", "op": "in", "value": "x"}]`,
		"equals with values": `[{"attribute": "a", "op": "equals", "values": ["x"]}]`,
		"not valid json":     `{`,
		"not an array":       `{"attribute": "a"}`,
	}
	for name, raw := range cases {
		_, err := ParseClauses([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestParseClausesEmpty(t *testing.T) {
	clauses, err := ParseClauses(nil)
	assert.NoError(t, err)
	assert.Nil(t, clauses)
}
