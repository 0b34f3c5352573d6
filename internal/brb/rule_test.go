package brb

import (
	"errors"
	"math"
	"testing"
)

func mustInput(t *testing.T, evidence map[string][]BeliefPair) *AttributeInput {
	t.Helper()
	in, err := NewAttributeInput(evidence)
	if err != nil {
		t.Fatalf("NewAttributeInput failed: %v", err)
	}
	return in
}

func TestMatchingDegreeFullMatch(t *testing.T) {
	rule := &Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high", "vibration": "strong"},
		Weights:     map[string]float64{"temp": 1, "vibration": 1},
		RuleWeight:  1,
	}
	in := mustInput(t, map[string][]BeliefPair{
		"temp":      {{Value: "high", Degree: 1}},
		"vibration": {{Value: "strong", Degree: 1}},
	})

	alpha, err := rule.MatchingDegree(in)
	if err != nil {
		t.Fatalf("MatchingDegree failed: %v", err)
	}
	if alpha != 1 {
		t.Errorf("Expected alpha=1 for full match, got %g", alpha)
	}
}

func TestMatchingDegreeZeroWhenValueAbsent(t *testing.T) {
	rule := &Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high"},
		Weights:     map[string]float64{"temp": 1},
	}
	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "low", Degree: 1}},
	})

	alpha, err := rule.MatchingDegree(in)
	if err != nil {
		t.Fatalf("MatchingDegree failed: %v", err)
	}
	if alpha != 0 {
		t.Errorf("Expected alpha=0 when required value absent, got %g", alpha)
	}
}

func TestMatchingDegreeWeightedGeometricMean(t *testing.T) {
	// Heaviest attribute normalizes to weight 1; the other to 0.5.
	rule := &Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high", "vibration": "strong"},
		Weights:     map[string]float64{"temp": 2, "vibration": 1},
	}
	in := mustInput(t, map[string][]BeliefPair{
		"temp":      {{Value: "high", Degree: 0.5}},
		"vibration": {{Value: "strong", Degree: 0.25}},
	})

	alpha, err := rule.MatchingDegree(in)
	if err != nil {
		t.Fatalf("MatchingDegree failed: %v", err)
	}
	expected := math.Pow(0.5, 1) * math.Pow(0.25, 0.5)
	if math.Abs(alpha-expected) > 1e-12 {
		t.Errorf("Expected alpha=%g, got %g", expected, alpha)
	}
}

func TestMatchingDegreeBounds(t *testing.T) {
	rule := &Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high", "vibration": "strong"},
		Weights:     map[string]float64{"temp": 3, "vibration": 0.5},
	}

	degrees := []float64{0, 0.1, 0.5, 0.9, 1}
	for _, dt := range degrees {
		for _, dv := range degrees {
			in := mustInput(t, map[string][]BeliefPair{
				"temp":      {{Value: "high", Degree: dt}},
				"vibration": {{Value: "strong", Degree: dv}},
			})
			alpha, err := rule.MatchingDegree(in)
			if err != nil {
				t.Fatalf("MatchingDegree(%g,%g) failed: %v", dt, dv, err)
			}
			if alpha < 0 || alpha > 1 {
				t.Errorf("alpha=%g out of [0,1] for degrees (%g,%g)", alpha, dt, dv)
			}
			if dt == 1 && dv == 1 && alpha != 1 {
				t.Errorf("Expected alpha=1 for unit degrees, got %g", alpha)
			}
		}
	}
}

func TestMatchingDegreeMissingEvidence(t *testing.T) {
	rule := &Rule{
		ID:          7,
		Antecedents: map[string]string{"temp": "high", "vibration": "strong"},
		Weights:     map[string]float64{"temp": 1, "vibration": 1},
	}
	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "high", Degree: 1}},
	})

	_, err := rule.MatchingDegree(in)
	var missing *MissingEvidenceError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingEvidenceError, got %v", err)
	}
	if missing.Attribute != "vibration" {
		t.Errorf("Expected missing attribute 'vibration', got %q", missing.Attribute)
	}
	if missing.RuleID != 7 {
		t.Errorf("Expected rule id 7 in error, got %d", missing.RuleID)
	}
}

func TestMatchingDegreeEmptyEvidenceListCounts(t *testing.T) {
	// A present attribute with an empty pair list is observed-with-
	// ignorance, not missing evidence.
	rule := &Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high"},
		Weights:     map[string]float64{"temp": 1},
	}
	in := mustInput(t, map[string][]BeliefPair{
		"temp": {},
	})

	alpha, err := rule.MatchingDegree(in)
	if err != nil {
		t.Fatalf("Expected no error for empty evidence list, got %v", err)
	}
	if alpha != 0 {
		t.Errorf("Expected alpha=0, got %g", alpha)
	}
}

func TestMatchingDegreeAllZeroWeights(t *testing.T) {
	rule := &Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high"},
		Weights:     map[string]float64{"temp": 0},
	}
	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "high", Degree: 1}},
	})

	_, err := rule.MatchingDegree(in)
	var invalid *InvalidRuleError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidRuleError for all-zero weights, got %v", err)
	}
}

func TestWeightNormalization(t *testing.T) {
	// The maximally weighted antecedent must end up with normalized
	// weight exactly 1: matching on it alone with degree d yields d.
	rule := &Rule{
		ID:          1,
		Antecedents: map[string]string{"temp": "high", "vibration": "strong"},
		Weights:     map[string]float64{"temp": 5, "vibration": 0},
	}
	in := mustInput(t, map[string][]BeliefPair{
		"temp":      {{Value: "high", Degree: 0.3}},
		"vibration": {{Value: "weak", Degree: 1}},
	})

	alpha, err := rule.MatchingDegree(in)
	if err != nil {
		t.Fatalf("MatchingDegree failed: %v", err)
	}
	// vibration has normalized weight 0 and drops out of the product.
	if math.Abs(alpha-0.3) > 1e-12 {
		t.Errorf("Expected alpha=0.3, got %g", alpha)
	}
}

func TestAttributeInputValidation(t *testing.T) {
	tests := []struct {
		name     string
		evidence map[string][]BeliefPair
		wantErr  bool
	}{
		{"valid", map[string][]BeliefPair{"temp": {{Value: "high", Degree: 0.6}, {Value: "low", Degree: 0.4}}}, false},
		{"partial mass", map[string][]BeliefPair{"temp": {{Value: "high", Degree: 0.3}}}, false},
		{"negative degree", map[string][]BeliefPair{"temp": {{Value: "high", Degree: -0.1}}}, true},
		{"degree above one", map[string][]BeliefPair{"temp": {{Value: "high", Degree: 1.2}}}, true},
		{"mass above one", map[string][]BeliefPair{"temp": {{Value: "high", Degree: 0.7}, {Value: "low", Degree: 0.5}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAttributeInput(tt.evidence)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestDegreeOfSumsDuplicateValues(t *testing.T) {
	in := mustInput(t, map[string][]BeliefPair{
		"temp": {{Value: "high", Degree: 0.2}, {Value: "high", Degree: 0.3}},
	})
	if d := in.DegreeOf("temp", "high"); math.Abs(d-0.5) > 1e-12 {
		t.Errorf("Expected summed degree 0.5, got %g", d)
	}
	if d := in.DegreeOf("temp", "low"); d != 0 {
		t.Errorf("Expected degree 0 for unassigned value, got %g", d)
	}
	if d := in.DegreeOf("pressure", "high"); d != 0 {
		t.Errorf("Expected degree 0 for absent attribute, got %g", d)
	}
}
