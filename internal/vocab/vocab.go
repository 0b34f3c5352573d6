// Package vocab loads rule-base vocabulary definitions: the declared
// antecedent attributes, their referential values, and the consequent
// domain a rule base is validated against.
package vocab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kartoza/brb-engine/internal/brb"
)

// Attribute declares one antecedent attribute and its referential values.
type Attribute struct {
	Name   string   `yaml:"name" json:"name"`
	Values []string `yaml:"values" json:"values"`
}

// Vocabulary is the declarative definition of a rule base's vocabulary.
type Vocabulary struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Attributes  []Attribute `yaml:"attributes" json:"attributes"`
	Consequents []string    `yaml:"consequents" json:"consequents"`
}

// Load reads and validates a vocabulary YAML file.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks the structural constraints of the vocabulary.
func (v *Vocabulary) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("vocabulary has no name")
	}
	if len(v.Attributes) == 0 {
		return fmt.Errorf("vocabulary %q declares no attributes", v.Name)
	}
	seen := make(map[string]bool, len(v.Attributes))
	for _, attr := range v.Attributes {
		if attr.Name == "" {
			return fmt.Errorf("vocabulary %q has an unnamed attribute", v.Name)
		}
		if seen[attr.Name] {
			return fmt.Errorf("vocabulary %q declares attribute %q twice", v.Name, attr.Name)
		}
		seen[attr.Name] = true
		if len(attr.Values) == 0 {
			return fmt.Errorf("attribute %q declares no referential values", attr.Name)
		}
		values := make(map[string]bool, len(attr.Values))
		for _, val := range attr.Values {
			if values[val] {
				return fmt.Errorf("attribute %q declares value %q twice", attr.Name, val)
			}
			values[val] = true
		}
	}
	if len(v.Consequents) == 0 {
		return fmt.Errorf("vocabulary %q declares no consequents", v.Name)
	}
	cons := make(map[string]bool, len(v.Consequents))
	for _, val := range v.Consequents {
		if cons[val] {
			return fmt.Errorf("vocabulary %q declares consequent %q twice", v.Name, val)
		}
		cons[val] = true
	}
	return nil
}

// AttributeNames returns the declared attribute names in order.
func (v *Vocabulary) AttributeNames() []string {
	names := make([]string, len(v.Attributes))
	for i, attr := range v.Attributes {
		names[i] = attr.Name
	}
	return names
}

// Domains returns the attribute → referential values mapping.
func (v *Vocabulary) Domains() map[string][]string {
	domains := make(map[string][]string, len(v.Attributes))
	for _, attr := range v.Attributes {
		domains[attr.Name] = attr.Values
	}
	return domains
}

// NewModel constructs an empty RuleBaseModel with this vocabulary.
func (v *Vocabulary) NewModel() (*brb.RuleBaseModel, error) {
	return brb.NewRuleBaseModel(v.AttributeNames(), v.Domains(), v.Consequents)
}
