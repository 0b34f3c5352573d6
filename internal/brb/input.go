// Package brb implements a belief rule-base inference engine following
// the RIMER methodology: AND-only production rules mapping antecedent
// referential values to consequent belief distributions, combined with
// the recursive evidential-reasoning rule.
package brb

// massTolerance absorbs float accumulation error when checking that
// belief degrees sum to at most 1.
const massTolerance = 1e-9

// BeliefPair assigns a belief degree to one referential value.
type BeliefPair struct {
	Value  string  `json:"value"`
	Degree float64 `json:"degree"`
}

// AttributeInput is a read-only evidence bundle for one inference call:
// for each observed attribute, an ordered list of (referential value,
// belief degree) pairs. Per-attribute degrees sum to at most 1; the
// remainder is attribute-level ignorance. An attribute with no entry is
// full ignorance, not an error.
type AttributeInput struct {
	evidence map[string][]BeliefPair
}

// NewAttributeInput validates and copies the supplied evidence.
func NewAttributeInput(evidence map[string][]BeliefPair) (*AttributeInput, error) {
	copied := make(map[string][]BeliefPair, len(evidence))
	for attr, pairs := range evidence {
		total := 0.0
		for _, p := range pairs {
			if p.Degree < 0 || p.Degree > 1 {
				return nil, &InvalidInputError{
					Attribute: attr,
					Detail:    "belief degree outside [0,1]",
				}
			}
			total += p.Degree
		}
		if total > 1+massTolerance {
			return nil, &InvalidInputError{
				Attribute: attr,
				Detail:    "belief degrees sum above 1",
			}
		}
		copied[attr] = append([]BeliefPair(nil), pairs...)
	}
	return &AttributeInput{evidence: copied}, nil
}

// Has reports whether any evidence was recorded for the attribute.
func (in *AttributeInput) Has(attribute string) bool {
	_, ok := in.evidence[attribute]
	return ok
}

// Evidence returns the recorded pairs for an attribute. A nil slice
// means no evidence (full ignorance).
func (in *AttributeInput) Evidence(attribute string) []BeliefPair {
	return in.evidence[attribute]
}

// DegreeOf returns the total belief degree the input assigns to exactly
// the given referential value of an attribute, 0 if unassigned.
func (in *AttributeInput) DegreeOf(attribute, value string) float64 {
	total := 0.0
	for _, p := range in.evidence[attribute] {
		if p.Value == value {
			total += p.Degree
		}
	}
	return total
}

// Attributes lists the attributes that carry evidence.
func (in *AttributeInput) Attributes() []string {
	names := make([]string, 0, len(in.evidence))
	for attr := range in.evidence {
		names = append(names, attr)
	}
	return names
}
