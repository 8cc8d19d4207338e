package model

import (
	"encoding/json"
	"fmt"
)

// Outcome is one of *SuccessOutcome, *FailureOutcome or *HeartbeatOutcome.
// Outcomes of a post action are tried in declaration order.
type Outcome interface {
	GetName() string
	GetType() ActionType
	GetSchema() map[string]any
	GetResponse() *ResponseSpec
	isOutcome()
}

type OutcomeBase struct {
	Name     string         `json:"name"`
	Type     ActionType     `json:"type"`
	Schema   map[string]any `json:"schema"`
	Response *ResponseSpec  `json:"response,omitempty"`
}

func (b *OutcomeBase) GetName() string {
	return b.Name
}

func (b *OutcomeBase) GetType() ActionType {
	return b.Type
}

func (b *OutcomeBase) GetSchema() map[string]any {
	return b.Schema
}

func (b *OutcomeBase) GetResponse() *ResponseSpec {
	return b.Response
}

var _ Outcome = new(SuccessOutcome)
var _ Outcome = new(FailureOutcome)
var _ Outcome = new(HeartbeatOutcome)

// SuccessOutcome takes its output from exactly one of OutputBody, OutputPath or Output.
type SuccessOutcome struct {
	OutcomeBase
	Output     any    `json:"output,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	OutputBody bool   `json:"output_body,omitempty"`
}

type FailureOutcome struct {
	OutcomeBase
	Error     string `json:"error,omitempty"`
	ErrorPath string `json:"error_path,omitempty"`
	Cause     string `json:"cause,omitempty"`
	CausePath string `json:"cause_path,omitempty"`
}

type HeartbeatOutcome struct {
	OutcomeBase
}

func (*SuccessOutcome) isOutcome()   {}
func (*FailureOutcome) isOutcome()   {}
func (*HeartbeatOutcome) isOutcome() {}

// MarshalJSON keeps a literal null output, which is a valid output source.
func (o SuccessOutcome) MarshalJSON() ([]byte, error) {
	type alias SuccessOutcome
	if o.OutputBody || o.OutputPath != "" {
		return json.Marshal(alias(o))
	}
	return json.Marshal(struct {
		alias
		Output any `json:"output"`
	}{alias(o), o.Output})
}

func NewSuccessOutcome(name string, schema map[string]any) *SuccessOutcome {
	return &SuccessOutcome{
		OutcomeBase: OutcomeBase{Name: name, Type: ACTION_TYPE_SUCCESS, Schema: schema},
	}
}

func NewFailureOutcome(name string, schema map[string]any) *FailureOutcome {
	return &FailureOutcome{
		OutcomeBase: OutcomeBase{Name: name, Type: ACTION_TYPE_FAILURE, Schema: schema},
	}
}

func NewHeartbeatOutcome(name string, schema map[string]any) *HeartbeatOutcome {
	return &HeartbeatOutcome{
		OutcomeBase: OutcomeBase{Name: name, Type: ACTION_TYPE_HEARTBEAT, Schema: schema},
	}
}

func UnmarshalOutcome(data []byte) (Outcome, error) {
	var head struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var outcome Outcome
	switch head.Type {
	case ACTION_TYPE_SUCCESS:
		outcome = new(SuccessOutcome)
	case ACTION_TYPE_FAILURE:
		outcome = new(FailureOutcome)
	case ACTION_TYPE_HEARTBEAT:
		outcome = new(HeartbeatOutcome)
	default:
		return nil, fmt.Errorf("unknown outcome type %q", head.Type)
	}
	if err := json.Unmarshal(data, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

type Outcomes []Outcome

func (o *Outcomes) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	outcomes := make(Outcomes, 0, len(raw))
	for i := range raw {
		outcome, err := UnmarshalOutcome(raw[i])
		if err != nil {
			return fmt.Errorf("outcome %d: %w", i, err)
		}
		outcomes = append(outcomes, outcome)
	}
	*o = outcomes
	return nil
}
