package brb

import (
	"errors"
	"sync"
)

// RuleBaseModel owns a fixed vocabulary (antecedent attributes and
// their referential domains, plus the consequent domain) and the rules
// validated against it. Rules only accumulate; there is no retraction.
//
// Run is a pure read and is safe to call concurrently; AddRule takes
// the write lock so the rule sequence is never observed mid-append.
type RuleBaseModel struct {
	attributes  []string
	domains     map[string]map[string]bool
	consequents []string
	consequent  map[string]bool

	mu    sync.RWMutex
	rules []*Rule
}

// RuleActivation records one rule's contribution to an inference run.
type RuleActivation struct {
	RuleID         int     `json:"rule_id"`
	MatchingDegree float64 `json:"matching_degree"`
	Weight         float64 `json:"activation_weight"`
}

// Result is the terminal output of one inference run: a belief
// distribution over the consequent domain plus the residual unassigned
// mass. Beliefs and Ignorance sum to 1.
type Result struct {
	Beliefs     map[string]float64 `json:"beliefs"`
	Ignorance   float64            `json:"ignorance"`
	Activations []RuleActivation   `json:"activations,omitempty"`
}

// NewRuleBaseModel copies and freezes the vocabulary. Attribute order
// and consequent order are preserved for audit output.
func NewRuleBaseModel(attributes []string, domains map[string][]string, consequents []string) (*RuleBaseModel, error) {
	if len(attributes) == 0 {
		return nil, errors.New("rule base needs at least one antecedent attribute")
	}
	if len(consequents) == 0 {
		return nil, errors.New("rule base needs at least one consequent referential value")
	}

	m := &RuleBaseModel{
		attributes:  append([]string(nil), attributes...),
		domains:     make(map[string]map[string]bool, len(attributes)),
		consequents: append([]string(nil), consequents...),
		consequent:  make(map[string]bool, len(consequents)),
	}
	for _, attr := range attributes {
		values, ok := domains[attr]
		if !ok || len(values) == 0 {
			return nil, errors.New("no referential values declared for attribute " + attr)
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		m.domains[attr] = set
	}
	for _, v := range consequents {
		m.consequent[v] = true
	}
	return m, nil
}

// Attributes returns the declared antecedent attribute names in order.
func (m *RuleBaseModel) Attributes() []string {
	return append([]string(nil), m.attributes...)
}

// Domain returns the declared referential values of one attribute.
func (m *RuleBaseModel) Domain(attribute string) []string {
	set, ok := m.domains[attribute]
	if !ok {
		return nil
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	return values
}

// Consequents returns the declared consequent referential values in order.
func (m *RuleBaseModel) Consequents() []string {
	return append([]string(nil), m.consequents...)
}

// RuleCount reports the number of admitted rules.
func (m *RuleBaseModel) RuleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Rules returns the admitted rules in insertion order.
func (m *RuleBaseModel) Rules() []*Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Rule(nil), m.rules...)
}

// AddRule validates the rule against the vocabulary and appends it.
// The first violated invariant is reported via InvalidRuleError and the
// rule sequence is left unchanged on failure.
func (m *RuleBaseModel) AddRule(r *Rule) error {
	// Per-key membership checks: every referenced attribute must be
	// declared, and every referential value must belong to its
	// attribute's domain.
	for attr := range r.Antecedents {
		if _, ok := m.domains[attr]; !ok {
			return &InvalidRuleError{
				RuleID:    r.ID,
				Invariant: "antecedents",
				Detail:    "attribute " + attr + " is not declared by the rule base",
			}
		}
	}
	for attr := range r.Weights {
		if _, ok := m.domains[attr]; !ok {
			return &InvalidRuleError{
				RuleID:    r.ID,
				Invariant: "weights",
				Detail:    "attribute " + attr + " is not declared by the rule base",
			}
		}
	}
	for attr, value := range r.Antecedents {
		if !m.domains[attr][value] {
			return &InvalidRuleError{
				RuleID:    r.ID,
				Invariant: "antecedents",
				Detail:    "value " + value + " is not in the domain of attribute " + attr,
			}
		}
	}
	for value := range r.ConsequentBelief {
		if !m.consequent[value] {
			return &InvalidRuleError{
				RuleID:    r.ID,
				Invariant: "consequent_belief",
				Detail:    "consequent " + value + " is not declared by the rule base",
			}
		}
	}
	if err := r.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
	return nil
}

// Run infers a combined belief distribution for the input using the
// RIMER evidential-reasoning aggregation: per-rule matching degrees,
// activation weights normalized over the activated rules, and the
// recursive combination of the activated rules' belief distributions.
//
// A rule that lacks evidence for one of its antecedents is simply not
// activated; an input attribute outside the vocabulary aborts the run
// with UnknownAttributeError.
func (m *RuleBaseModel) Run(in *AttributeInput) (*Result, error) {
	for _, attr := range in.Attributes() {
		if _, ok := m.domains[attr]; !ok {
			return nil, &UnknownAttributeError{Attribute: attr}
		}
	}

	m.mu.RLock()
	rules := m.rules
	m.mu.RUnlock()

	activations := make([]RuleActivation, len(rules))
	var activated []int
	maxTheta := 0.0
	for i, r := range rules {
		alpha, err := r.MatchingDegree(in)
		if err != nil {
			var missing *MissingEvidenceError
			if errors.As(err, &missing) {
				// Inapplicable rule: zero activation, not a failure.
				alpha = 0
			} else {
				return nil, err
			}
		}
		activations[i] = RuleActivation{RuleID: r.ID, MatchingDegree: alpha}
		if alpha > 0 {
			activated = append(activated, i)
			if r.RuleWeight > maxTheta {
				maxTheta = r.RuleWeight
			}
		}
	}

	// Zero total activation (no rule matched, or every activated rule
	// carries zero weight): full ignorance over the consequent domain.
	if len(activated) == 0 || maxTheta == 0 {
		return m.ignoranceResult(activations), nil
	}

	totalActivation := 0.0
	for _, i := range activated {
		totalActivation += rules[i].RuleWeight / maxTheta * activations[i].MatchingDegree
	}
	if totalActivation == 0 {
		return m.ignoranceResult(activations), nil
	}
	for _, i := range activated {
		activations[i].Weight = rules[i].RuleWeight / maxTheta * activations[i].MatchingDegree / totalActivation
	}

	beliefs, ignorance := m.combine(rules, activations, activated)
	return &Result{
		Beliefs:     beliefs,
		Ignorance:   ignorance,
		Activations: activations,
	}, nil
}

// combine folds the activated rules' belief distributions with the
// recursive evidential-reasoning update. Probability masses are kept
// per consequent, with the unassigned mass split into the part caused
// by activation weights below 1 (mBar) and the part caused by the
// rules' own ignorance (mTilde); the fold is associative and
// commutative, so rule order does not matter.
func (m *RuleBaseModel) combine(rules []*Rule, activations []RuleActivation, activated []int) (map[string]float64, float64) {
	n := len(m.consequents)
	combined := make([]float64, n)
	mBar := 1.0
	mTilde := 0.0

	for _, idx := range activated {
		r := rules[idx]
		w := activations[idx].Weight

		ruleMass := make([]float64, n)
		beliefTotal := 0.0
		for j, value := range m.consequents {
			ruleMass[j] = w * r.ConsequentBelief[value]
			beliefTotal += r.ConsequentBelief[value]
		}
		ruleBar := 1 - w
		ruleTilde := w * (1 - beliefTotal)

		// Conflict normalization: the mass the running state and this
		// rule assign to differing consequents.
		runningAssigned := 0.0
		ruleAssigned := 0.0
		dot := 0.0
		for j := 0; j < n; j++ {
			runningAssigned += combined[j]
			ruleAssigned += ruleMass[j]
			dot += combined[j] * ruleMass[j]
		}
		conflict := runningAssigned*ruleAssigned - dot
		k := 1 / (1 - conflict)

		runningUnassigned := mBar + mTilde
		ruleUnassigned := ruleBar + ruleTilde
		for j := 0; j < n; j++ {
			combined[j] = k * (combined[j]*ruleMass[j] +
				combined[j]*ruleUnassigned +
				runningUnassigned*ruleMass[j])
		}
		newTilde := k * (mTilde*ruleTilde + mBar*ruleTilde + mTilde*ruleBar)
		newBar := k * (mBar * ruleBar)
		mTilde = newTilde
		mBar = newBar
	}

	beliefs := make(map[string]float64, n)
	denom := 1 - mBar
	if denom <= 0 {
		for _, value := range m.consequents {
			beliefs[value] = 0
		}
		return beliefs, 1
	}
	for j, value := range m.consequents {
		beliefs[value] = combined[j] / denom
	}
	return beliefs, mTilde / denom
}

func (m *RuleBaseModel) ignoranceResult(activations []RuleActivation) *Result {
	beliefs := make(map[string]float64, len(m.consequents))
	for _, value := range m.consequents {
		beliefs[value] = 0
	}
	return &Result{Beliefs: beliefs, Ignorance: 1, Activations: activations}
}
