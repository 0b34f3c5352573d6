package ruletable

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSV column prefixes as the authoring pipeline emits them:
// antecedent value columns A_<attribute>, antecedent weight columns
// del_<attribute>, consequent belief columns D_<value>.
const (
	colRuleID     = "rule_id"
	colRuleWeight = "rule_weight"

	antecedentPrefix = "A_"
	weightPrefix     = "del_"
	consequentPrefix = "D_"
)

// ReadCSV parses a rule table from CSV. Empty antecedent cells mean
// the attribute does not participate in that rule; empty belief cells
// mean degree 0. Decimal commas from locale-formatted workbooks are
// normalized to dots.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table header: %w", err)
	}

	idCol := -1
	weightCol := -1
	antecedentCols := make(map[int]string)
	deltaCols := make(map[int]string)
	beliefCols := make(map[int]string)
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == colRuleID:
			idCol = i
		case name == colRuleWeight:
			weightCol = i
		case strings.HasPrefix(name, antecedentPrefix):
			antecedentCols[i] = strings.TrimPrefix(name, antecedentPrefix)
		case strings.HasPrefix(name, weightPrefix):
			deltaCols[i] = strings.TrimPrefix(name, weightPrefix)
		case strings.HasPrefix(name, consequentPrefix):
			beliefCols[i] = strings.TrimPrefix(name, consequentPrefix)
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("rule table has no %s column", colRuleID)
	}
	if weightCol < 0 {
		return nil, fmt.Errorf("rule table has no %s column", colRuleWeight)
	}

	table := &Table{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read rule table line %d: %w", line, err)
		}

		id, err := strconv.Atoi(strings.TrimSpace(record[idCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rule id %q", line, record[idCol])
		}
		ruleWeight, err := parseDegree(record[weightCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rule weight: %v", line, err)
		}

		row := Row{
			RuleID:      id,
			RuleWeight:  ruleWeight,
			Antecedents: make(map[string]string),
			Weights:     make(map[string]float64),
			Beliefs:     make(map[string]float64),
		}
		for col, attr := range antecedentCols {
			value := strings.TrimSpace(record[col])
			if value != "" {
				row.Antecedents[attr] = value
			}
		}
		for col, attr := range deltaCols {
			cell := strings.TrimSpace(record[col])
			if cell == "" {
				continue
			}
			w, err := parseDegree(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid weight for attribute %q: %v", line, attr, err)
			}
			row.Weights[attr] = w
		}
		for col, value := range beliefCols {
			cell := strings.TrimSpace(record[col])
			if cell == "" {
				continue
			}
			degree, err := parseDegree(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid belief for consequent %q: %v", line, value, err)
			}
			row.Beliefs[value] = degree
		}
		table.Rows = append(table.Rows, row)
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadCSV reads a rule table from a file.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule table: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// parseDegree parses a non-negative numeric cell, accepting both dot
// and comma decimal separators.
func parseDegree(cell string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(cell), ",", ".")
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value: %q", cell)
	}
	return v, nil
}
