package model

import (
	"encoding/json"
	"fmt"
)

type CreateUrlsRequest struct {
	Token                  string       `json:"token"`
	Actions                Actions      `json:"actions"`
	Expiration             string       `json:"expiration,omitempty"`
	EnableOutputParameters bool         `json:"enable_output_parameters,omitempty"`
	BaseURL                *BaseURLSpec `json:"base_url,omitempty"`
}

// BaseURLSpec is either a literal URL or an API Gateway deployment reference.
type BaseURLSpec struct {
	URL    string
	ApiId  string
	Stage  string
	Region string
}

type apiGatewaySpec struct {
	ApiId  string `json:"api_id"`
	Stage  string `json:"stage"`
	Region string `json:"region,omitempty"`
}

func (b *BaseURLSpec) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		*b = BaseURLSpec{URL: url}
		return nil
	}
	var spec apiGatewaySpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("base_url must be a string or an object: %w", err)
	}
	*b = BaseURLSpec{ApiId: spec.ApiId, Stage: spec.Stage, Region: spec.Region}
	return nil
}

func (b BaseURLSpec) MarshalJSON() ([]byte, error) {
	if b.URL != "" {
		return json.Marshal(b.URL)
	}
	return json.Marshal(apiGatewaySpec{ApiId: b.ApiId, Stage: b.Stage, Region: b.Region})
}

type CreateUrlsResponse struct {
	TransactionId string            `json:"transaction_id"`
	Expiration    string            `json:"expiration,omitempty"`
	Urls          map[string]string `json:"urls"`
}

type ErrorResponse struct {
	TransactionId string `json:"transaction_id,omitempty"`
	Error         string `json:"error"`
	Message       string `json:"message"`
}

// CallbackResponse is the default body of a successful callback.
type CallbackResponse struct {
	Action  string     `json:"action"`
	Type    ActionType `json:"type"`
	Outcome string     `json:"outcome,omitempty"`
}
