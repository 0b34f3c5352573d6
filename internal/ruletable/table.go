// Package ruletable implements the tabular rule exchange format the
// expert authoring pipeline emits: one row per rule, carrying the
// antecedent referential values, the paired antecedent weights, the
// rule weight, and the consequent belief degrees.
package ruletable

import (
	"fmt"
	"sort"

	"github.com/kartoza/brb-engine/internal/brb"
)

// Row describes one rule of a rule table.
type Row struct {
	RuleID      int                `json:"rule_id"`
	RuleWeight  float64            `json:"rule_weight"`
	Antecedents map[string]string  `json:"antecedents"`
	Weights     map[string]float64 `json:"weights"`
	Beliefs     map[string]float64 `json:"beliefs"`
}

// Table is an in-memory rule table.
type Table struct {
	Rows []Row
}

// Validate checks the identifier constraints of the table: positive,
// unique, dense 1-based rule ids.
func (t *Table) Validate() error {
	seen := make(map[int]bool, len(t.Rows))
	for _, row := range t.Rows {
		if row.RuleID <= 0 {
			return fmt.Errorf("rule id %d is not positive", row.RuleID)
		}
		if seen[row.RuleID] {
			return fmt.Errorf("duplicate rule id %d", row.RuleID)
		}
		seen[row.RuleID] = true
	}
	for id := 1; id <= len(t.Rows); id++ {
		if !seen[id] {
			return fmt.Errorf("rule ids are not dense: missing id %d", id)
		}
	}
	return nil
}

// Rule converts a row into an engine rule.
func (r *Row) Rule() *brb.Rule {
	return &brb.Rule{
		ID:               r.RuleID,
		Antecedents:      r.Antecedents,
		Weights:          r.Weights,
		RuleWeight:       r.RuleWeight,
		ConsequentBelief: r.Beliefs,
	}
}

// Populate admits every row into the model via AddRule, in rule id
// order. The first row that violates a model invariant aborts the load
// with the offending rule id in the error.
func (t *Table) Populate(model *brb.RuleBaseModel) error {
	if err := t.Validate(); err != nil {
		return err
	}
	rows := append([]Row(nil), t.Rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].RuleID < rows[j].RuleID })
	for _, row := range rows {
		if err := model.AddRule(row.Rule()); err != nil {
			return fmt.Errorf("row %d rejected: %w", row.RuleID, err)
		}
	}
	return nil
}
