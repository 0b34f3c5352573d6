package brb

import "math"

// Rule is one conjunctive production rule: it activates fully only when
// every antecedent attribute matches its required referential value.
// Rules are immutable once admitted to a model.
type Rule struct {
	// ID identifies the rule in error reports and activation traces.
	ID int

	// Antecedents maps attribute name to the single referential value
	// that activates this rule.
	Antecedents map[string]string

	// Weights holds the relative antecedent weights (delta). Keys must
	// cover every antecedent attribute.
	Weights map[string]float64

	// RuleWeight (theta) is the rule's overall importance relative to
	// the other rules in the base.
	RuleWeight float64

	// ConsequentBelief maps consequent referential value to belief
	// degree. Degrees sum to at most 1; the remainder is the rule's
	// local ignorance.
	ConsequentBelief map[string]float64
}

// MatchingDegree computes how strongly the input activates this rule:
// the weighted geometric mean of per-attribute matching degrees, with
// weights normalized so the heaviest antecedent has weight 1.
//
// Every antecedent attribute must carry evidence in the input;
// otherwise a MissingEvidenceError is returned. The result is in [0,1]
// and 0 means the rule is not activated at all.
func (r *Rule) MatchingDegree(in *AttributeInput) (float64, error) {
	for attr := range r.Antecedents {
		if !in.Has(attr) {
			return 0, &MissingEvidenceError{RuleID: r.ID, Attribute: attr}
		}
	}

	maxWeight := 0.0
	for _, w := range r.Weights {
		if w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight <= 0 {
		// Rejected at AddRule time; guarded here so a standalone rule
		// never divides by zero.
		return 0, &InvalidRuleError{
			RuleID:    r.ID,
			Invariant: "weights",
			Detail:    "all antecedent weights are zero",
		}
	}

	alpha := 1.0
	for attr, value := range r.Antecedents {
		degree := in.DegreeOf(attr, value)
		// Real-number exponentiation: a zero-weight antecedent
		// contributes Pow(x, 0) = 1 and drops out of the product.
		alpha *= math.Pow(degree, r.Weights[attr]/maxWeight)
	}
	return alpha, nil
}

// validate checks the rule's internal structure independent of any
// model vocabulary: weight coverage, non-zero weights, and belief
// degree bounds.
func (r *Rule) validate() *InvalidRuleError {
	if len(r.Antecedents) == 0 {
		return &InvalidRuleError{
			RuleID:    r.ID,
			Invariant: "antecedents",
			Detail:    "rule has no antecedents",
		}
	}
	for attr := range r.Antecedents {
		if _, ok := r.Weights[attr]; !ok {
			return &InvalidRuleError{
				RuleID:    r.ID,
				Invariant: "weights",
				Detail:    "no weight for antecedent attribute " + attr,
			}
		}
	}
	maxWeight := 0.0
	for attr, w := range r.Weights {
		if w < 0 {
			return &InvalidRuleError{
				RuleID:    r.ID,
				Invariant: "weights",
				Detail:    "negative weight for attribute " + attr,
			}
		}
		if w > maxWeight {
			maxWeight = w
		}
	}
	if len(r.Antecedents) > 0 && maxWeight == 0 {
		return &InvalidRuleError{
			RuleID:    r.ID,
			Invariant: "weights",
			Detail:    "all antecedent weights are zero",
		}
	}
	if r.RuleWeight < 0 {
		return &InvalidRuleError{
			RuleID:    r.ID,
			Invariant: "rule_weight",
			Detail:    "rule weight is negative",
		}
	}
	total := 0.0
	for value, degree := range r.ConsequentBelief {
		if degree < 0 || degree > 1 {
			return &InvalidRuleError{
				RuleID:    r.ID,
				Invariant: "consequent_belief",
				Detail:    "belief degree outside [0,1] for consequent " + value,
			}
		}
		total += degree
	}
	if total > 1+massTolerance {
		return &InvalidRuleError{
			RuleID:    r.ID,
			Invariant: "consequent_belief",
			Detail:    "belief degrees sum above 1",
		}
	}
	return nil
}
