package brb

import (
	"errors"
	"math"
	"testing"
)

func newTestModel(t *testing.T) *RuleBaseModel {
	t.Helper()
	model, err := NewRuleBaseModel(
		[]string{"temp", "vibration"},
		map[string][]string{
			"temp":      {"low", "high"},
			"vibration": {"weak", "strong"},
		},
		[]string{"ok", "fail"},
	)
	if err != nil {
		t.Fatalf("NewRuleBaseModel failed: %v", err)
	}
	return model
}

func TestAddRuleRejectsUndeclaredAttribute(t *testing.T) {
	model := newTestModel(t)
	err := model.AddRule(&Rule{
		ID:          1,
		Antecedents: map[string]string{"pressure": "high"},
		Weights:     map[string]float64{"pressure": 1},
		RuleWeight:  1,
	})
	var invalid *InvalidRuleError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidRuleError, got %v", err)
	}
	if invalid.Invariant != "antecedents" {
		t.Errorf("Expected antecedents invariant, got %q", invalid.Invariant)
	}
	if model.RuleCount() != 0 {
		t.Error("Rule sequence changed after rejected add")
	}
}

func TestAddRuleRejectsValueOutsideDomain(t *testing.T) {
	model := newTestModel(t)
	err := model.AddRule(&Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "scorching"},
		Weights:     map[string]float64{"temp": 1},
		RuleWeight:  1,
	})
	var invalid *InvalidRuleError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidRuleError, got %v", err)
	}
}

func TestAddRuleRejectsUndeclaredConsequent(t *testing.T) {
	model := newTestModel(t)
	err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"exploded": 1},
	})
	if err == nil {
		t.Fatal("Expected error for undeclared consequent")
	}
}

func TestAddRuleRejectsMissingWeight(t *testing.T) {
	model := newTestModel(t)
	err := model.AddRule(&Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high", "vibration": "strong"},
		Weights:     map[string]float64{"temp": 1},
		RuleWeight:  1,
	})
	var invalid *InvalidRuleError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidRuleError, got %v", err)
	}
	if invalid.Invariant != "weights" {
		t.Errorf("Expected weights invariant, got %q", invalid.Invariant)
	}
}

func TestAddRuleRejectsAllZeroWeights(t *testing.T) {
	model := newTestModel(t)
	err := model.AddRule(&Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high"},
		Weights:     map[string]float64{"temp": 0},
		RuleWeight:  1,
	})
	if err == nil {
		t.Fatal("Expected error for all-zero weights")
	}
}

func TestAddRuleRejectsOverfullBelief(t *testing.T) {
	model := newTestModel(t)
	err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"ok": 0.7, "fail": 0.5},
	})
	if err == nil {
		t.Fatal("Expected error for belief degrees summing above 1")
	}
}

func TestRunUnknownAttribute(t *testing.T) {
	model := newTestModel(t)
	in := mustInput(t, map[string][]BeliefPair{
		"humidity": {{Value: "high", Degree: 1}},
	})

	_, err := model.Run(in)
	var unknown *UnknownAttributeError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownAttributeError, got %v", err)
	}
	if unknown.Attribute != "humidity" {
		t.Errorf("Expected offending attribute 'humidity', got %q", unknown.Attribute)
	}
}

func TestRunSingleRuleIdentity(t *testing.T) {
	// Example scenario: one fully activated rule whose belief sums to
	// 0.9 yields exactly that distribution and ignorance 0.1.
	model, err := NewRuleBaseModel(
		[]string{"temp"},
		map[string][]string{"temp": {"low", "high"}},
		[]string{"ok", "fail"},
	)
	if err != nil {
		t.Fatalf("NewRuleBaseModel failed: %v", err)
	}
	if err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"fail": 0.9},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "high", Degree: 1}},
	})
	result, err := model.Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Activations) != 1 || result.Activations[0].MatchingDegree != 1 {
		t.Errorf("Expected matching degree 1, got %+v", result.Activations)
	}
	if math.Abs(result.Beliefs["fail"]-0.9) > 1e-9 {
		t.Errorf("Expected fail belief 0.9, got %g", result.Beliefs["fail"])
	}
	if math.Abs(result.Beliefs["ok"]) > 1e-9 {
		t.Errorf("Expected ok belief 0, got %g", result.Beliefs["ok"])
	}
	if math.Abs(result.Ignorance-0.1) > 1e-9 {
		t.Errorf("Expected ignorance 0.1, got %g", result.Ignorance)
	}
}

func TestRunFullyAssignedSingleRule(t *testing.T) {
	model := newTestModel(t)
	if err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       2,
		ConsequentBelief: map[string]float64{"ok": 0.25, "fail": 0.75},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	in := mustInput(t, map[string][]BeliefPair{
		"temp":      {{Value: "high", Degree: 1}},
		"vibration": {{Value: "weak", Degree: 1}},
	})
	result, err := model.Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if math.Abs(result.Beliefs["ok"]-0.25) > 1e-9 || math.Abs(result.Beliefs["fail"]-0.75) > 1e-9 {
		t.Errorf("Expected the rule's own distribution, got %v", result.Beliefs)
	}
	if math.Abs(result.Ignorance) > 1e-9 {
		t.Errorf("Expected ignorance 0, got %g", result.Ignorance)
	}
}

func TestRunNoActivationTerminal(t *testing.T) {
	model := newTestModel(t)
	if err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"fail": 1},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "low", Degree: 1}},
	})
	result, err := model.Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Ignorance != 1 {
		t.Errorf("Expected ignorance 1, got %g", result.Ignorance)
	}
	for value, degree := range result.Beliefs {
		if degree != 0 {
			t.Errorf("Expected zero belief for %q, got %g", value, degree)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	// No evidence at all: every rule raises MissingEvidence internally
	// and is recovered as unactivated; the run still terminates with
	// the full-ignorance result.
	model := newTestModel(t)
	if err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"fail": 1},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	in := mustInput(t, map[string][]BeliefPair{})
	result, err := model.Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Ignorance != 1 {
		t.Errorf("Expected ignorance 1, got %g", result.Ignorance)
	}
}

func TestRunZeroRuleWeightsTerminal(t *testing.T) {
	model := newTestModel(t)
	if err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       0,
		ConsequentBelief: map[string]float64{"fail": 1},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "high", Degree: 1}},
	})
	result, err := model.Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Ignorance != 1 {
		t.Errorf("Expected full ignorance when every activated rule has zero weight, got %g", result.Ignorance)
	}
}

func TestRunMassConservation(t *testing.T) {
	model := newTestModel(t)
	rules := []*Rule{
		{
			ID:               1,
			Antecedents:      map[string]string{"temp": "high", "vibration": "strong"},
			Weights:          map[string]float64{"temp": 2, "vibration": 1},
			RuleWeight:       1,
			ConsequentBelief: map[string]float64{"fail": 0.8, "ok": 0.1},
		},
		{
			ID:               2,
			Antecedents:      map[string]string{"temp": "low"},
			Weights:          map[string]float64{"temp": 1},
			RuleWeight:       0.5,
			ConsequentBelief: map[string]float64{"ok": 0.95},
		},
		{
			ID:               3,
			Antecedents:      map[string]string{"vibration": "strong"},
			Weights:          map[string]float64{"vibration": 1},
			RuleWeight:       0.8,
			ConsequentBelief: map[string]float64{"fail": 0.4, "ok": 0.3},
		},
	}
	for _, r := range rules {
		if err := model.AddRule(r); err != nil {
			t.Fatalf("AddRule %d failed: %v", r.ID, err)
		}
	}

	inputs := []map[string][]BeliefPair{
		{
			"temp":      {{Value: "high", Degree: 0.7}, {Value: "low", Degree: 0.3}},
			"vibration": {{Value: "strong", Degree: 0.6}},
		},
		{
			"temp":      {{Value: "low", Degree: 1}},
			"vibration": {{Value: "weak", Degree: 0.5}, {Value: "strong", Degree: 0.2}},
		},
		{
			"temp":      {{Value: "high", Degree: 0.2}},
			"vibration": {{Value: "strong", Degree: 1}},
		},
	}

	for i, evidence := range inputs {
		in := mustInput(t, evidence)
		result, err := model.Run(in)
		if err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}

		total := result.Ignorance
		for value, degree := range result.Beliefs {
			if degree < 0 || degree > 1 {
				t.Errorf("Run %d: belief for %q out of [0,1]: %g", i, value, degree)
			}
			total += degree
		}
		if math.Abs(total-1) > 1e-9 {
			t.Errorf("Run %d: mass not conserved, sum=%g", i, total)
		}

		weightSum := 0.0
		for _, act := range result.Activations {
			if act.Weight < 0 || act.Weight > 1 {
				t.Errorf("Run %d: activation weight out of [0,1]: %+v", i, act)
			}
			weightSum += act.Weight
		}
		if math.Abs(weightSum-1) > 1e-9 {
			t.Errorf("Run %d: activation weights sum to %g, expected 1", i, weightSum)
		}
	}
}

func TestRunOrderIndependence(t *testing.T) {
	// The ER fold is associative and commutative: inserting the same
	// rules in reverse order yields the same distribution.
	build := func(reversed bool) *Result {
		model := newTestModel(t)
		rules := []*Rule{
			{
				ID:               1,
				Antecedents:      map[string]string{"temp": "high"},
				Weights:          map[string]float64{"temp": 1},
				RuleWeight:       1,
				ConsequentBelief: map[string]float64{"fail": 0.7, "ok": 0.2},
			},
			{
				ID:               2,
				Antecedents:      map[string]string{"vibration": "strong"},
				Weights:          map[string]float64{"vibration": 1},
				RuleWeight:       0.6,
				ConsequentBelief: map[string]float64{"ok": 0.5, "fail": 0.3},
			},
		}
		if reversed {
			rules[0], rules[1] = rules[1], rules[0]
		}
		for _, r := range rules {
			if err := model.AddRule(r); err != nil {
				t.Fatalf("AddRule failed: %v", err)
			}
		}
		in := mustInput(t, map[string][]BeliefPair{
			"temp":      {{Value: "high", Degree: 0.8}},
			"vibration": {{Value: "strong", Degree: 0.5}},
		})
		result, err := model.Run(in)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return result
	}

	forward := build(false)
	backward := build(true)
	for value := range forward.Beliefs {
		if math.Abs(forward.Beliefs[value]-backward.Beliefs[value]) > 1e-9 {
			t.Errorf("Belief for %q differs by insertion order: %g vs %g",
				value, forward.Beliefs[value], backward.Beliefs[value])
		}
	}
	if math.Abs(forward.Ignorance-backward.Ignorance) > 1e-9 {
		t.Errorf("Ignorance differs by insertion order: %g vs %g",
			forward.Ignorance, backward.Ignorance)
	}
}

func TestRunRecoversMissingEvidenceLocally(t *testing.T) {
	// A rule whose antecedent attribute carries no evidence must not
	// abort the run; the remaining rules still combine.
	model := newTestModel(t)
	if err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"vibration": "strong"},
		Weights:          map[string]float64{"vibration": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"fail": 1},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if err := model.AddRule(&Rule{
		ID:               2,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"fail": 0.6, "ok": 0.4},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "high", Degree: 1}},
	})
	result, err := model.Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Activations[0].MatchingDegree != 0 {
		t.Errorf("Rule without evidence should have zero activation, got %+v", result.Activations[0])
	}
	if math.Abs(result.Beliefs["fail"]-0.6) > 1e-9 || math.Abs(result.Beliefs["ok"]-0.4) > 1e-9 {
		t.Errorf("Expected the second rule's distribution, got %v", result.Beliefs)
	}
}

func TestRunStrongerEvidenceDominates(t *testing.T) {
	model := newTestModel(t)
	if err := model.AddRule(&Rule{
		ID:               1,
		Antecedents:      map[string]string{"temp": "high"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"fail": 1},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if err := model.AddRule(&Rule{
		ID:               2,
		Antecedents:      map[string]string{"temp": "low"},
		Weights:          map[string]float64{"temp": 1},
		RuleWeight:       1,
		ConsequentBelief: map[string]float64{"ok": 1},
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "high", Degree: 0.9}, {Value: "low", Degree: 0.1}},
	})
	result, err := model.Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Beliefs["fail"] <= result.Beliefs["ok"] {
		t.Errorf("Expected fail to dominate ok, got %v", result.Beliefs)
	}
}

func TestModelVocabularyFrozen(t *testing.T) {
	model := newTestModel(t)
	attrs := model.Attributes()
	attrs[0] = "mutated"
	if model.Attributes()[0] == "mutated" {
		t.Error("Attributes() leaked internal state")
	}
	cons := model.Consequents()
	cons[0] = "mutated"
	if model.Consequents()[0] == "mutated" {
		t.Error("Consequents() leaked internal state")
	}
}
