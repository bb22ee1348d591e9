// Package types holds the shared data model passed between the gateway,
// pipeline, session, and context builder packages. It intentionally carries
// no behavior beyond what those packages need to agree on a wire shape.
package types

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn exchanged with a model. Consensus stages only
// ever deal in plain text, so unlike a general-purpose chat runtime there is
// no Parts/media split here.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Stage identifies which pipeline stage produced this message, empty
	// for the original user question.
	Stage string `json:"stage,omitempty"`

	// Model is the model identifier that produced this message, if any.
	Model string `json:"model,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	CostInfo  *CostInfo `json:"cost_info,omitempty"`

	Validations []ValidationResult `json:"validations,omitempty"`

	Meta map[string]any `json:"meta,omitempty"`
}

// CostInfo tracks token usage and associated cost for a single model call,
// or an aggregation across several. All cost values are USD.
type CostInfo struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	InputCostUSD  float64 `json:"input_cost_usd"`
	OutputCostUSD float64 `json:"output_cost_usd"`
	TotalCostUSD  float64 `json:"total_cost_usd"`

	// Unknown is set when the originating model's pricing was not in the
	// registry and TotalCostUSD could not be computed. Callers must check
	// this before treating a zero TotalCostUSD as "free".
	Unknown bool `json:"cost_unknown,omitempty"`
}

// Add accumulates another CostInfo into c, preserving Unknown once set.
func (c *CostInfo) Add(other *CostInfo) {
	if other == nil {
		return
	}
	c.InputTokens += other.InputTokens
	c.OutputTokens += other.OutputTokens
	c.InputCostUSD += other.InputCostUSD
	c.OutputCostUSD += other.OutputCostUSD
	c.TotalCostUSD += other.TotalCostUSD
	c.Unknown = c.Unknown || other.Unknown
}

// ValidationResult records the outcome of a single validator check performed
// against a Validator-stage message.
type ValidationResult struct {
	Validator string         `json:"validator"`
	Passed    bool           `json:"passed"`
	Detail    string         `json:"detail,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// MarshalJSON keeps Message's zero-value Timestamp from serializing as the
// JSON zero time; everything else uses default struct tags.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	aux := struct {
		alias
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}{alias: alias(m)}
	if !m.Timestamp.IsZero() {
		aux.Timestamp = &m.Timestamp
	}
	return json.Marshal(aux)
}
