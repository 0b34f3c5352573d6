package brb

import "fmt"

// InvalidRuleError is returned by AddRule when a rule violates the
// model's vocabulary or its own structural constraints. Invariant names
// the first violated constraint; the rule definition must be fixed
// before the rule can be admitted.
type InvalidRuleError struct {
	RuleID    int
	Invariant string
	Detail    string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %d: %s: %s", e.RuleID, e.Invariant, e.Detail)
}

// MissingEvidenceError is returned by MatchingDegree when the input
// carries no evidence for an attribute the rule requires. The rule is
// inapplicable to the input; inference treats this as zero activation.
type MissingEvidenceError struct {
	RuleID    int
	Attribute string
}

func (e *MissingEvidenceError) Error() string {
	return fmt.Sprintf("rule %d: no evidence for attribute %q", e.RuleID, e.Attribute)
}

// UnknownAttributeError is returned by Run when the input references an
// attribute outside the model's vocabulary. Fatal to that Run call.
type UnknownAttributeError struct {
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q", e.Attribute)
}

// InvalidInputError is returned when an evidence bundle itself is
// malformed (degree out of range, per-attribute mass above 1).
type InvalidInputError struct {
	Attribute string
	Detail    string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid evidence for attribute %q: %s", e.Attribute, e.Detail)
}
