package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownOp      = errors.New("unknown_op")
	ErrMissingField   = errors.New("missing_field")
	ErrValueShape     = errors.New("invalid_value_shape")
	ErrInvalidClauses = errors.New("invalid_clauses")
)

// ClauseSpec is the stored JSON form of a clause. Scalar ops carry
// "value", membership ops carry "values". The same shape is validated
// at write time and resolved again when a snapshot is built.
type ClauseSpec struct {
	Attribute string   `json:"attribute"`
	Op        Op       `json:"op"`
	Value     string   `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// Resolve validates the spec and freezes it into a Clause.
func (s ClauseSpec) Resolve() (Clause, error) {
	field := strings.TrimSpace(s.Attribute)
	if field == "" {
		return Clause{}, ErrMissingField
	}
	if !KnownOp(s.Op) {
		return Clause{}, fmt.Errorf("%w: %q", ErrUnknownOp, s.Op)
	}

	clause := Clause{Field: field, Op: s.Op}
	switch s.Op {
	case OpIn, OpNotIn:
		if s.Values == nil {
			return Clause{}, fmt.Errorf("%w: %s requires values", ErrValueShape, s.Op)
		}
		clause.Value = ClauseValue{List: s.Values, IsList: true}
	default:
		if s.Values != nil {
			return Clause{}, fmt.Errorf("%w: %s takes a single value", ErrValueShape, s.Op)
		}
		clause.Value = ClauseValue{Scalar: s.Value}
	}
	return clause, nil
}

// ParseClauses decodes and resolves a stored clause list. Any invalid
// entry invalidates the whole list.
func ParseClauses(raw []byte) ([]Clause, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var specs []ClauseSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClauses, err)
	}

	clauses := make([]Clause, 0, len(specs))
	for _, spec := range specs {
		clause, err := spec.Resolve()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}
