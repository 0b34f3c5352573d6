package models

import (
	"github.com/kartoza/brb-engine/internal/brb"
	"github.com/kartoza/brb-engine/internal/ruletable"
	"github.com/kartoza/brb-engine/internal/vocab"
)

// CreateRuleBaseRequest carries an inline rule base definition
type CreateRuleBaseRequest struct {
	Vocabulary vocab.Vocabulary `json:"vocabulary"`
	Rules      []ruletable.Row  `json:"rules"`
}

// CreateRuleBaseResponse contains the generated rule base id
type CreateRuleBaseResponse struct {
	ID string `json:"id"`
}

// InferRequest carries one evidence record for an inference run
type InferRequest struct {
	Evidence map[string][]brb.BeliefPair `json:"evidence"`
}

// InferResponse contains the combined belief distribution
type InferResponse struct {
	Beliefs     map[string]float64   `json:"beliefs"`
	Ignorance   float64              `json:"ignorance"`
	Activations []brb.RuleActivation `json:"activations,omitempty"`
}
