package model

import (
	"encoding/json"
	"fmt"
)

// Payload is everything a callback URL carries. It is built once at creation
// time and only ever read back at callback time.
type Payload struct {
	Token         string `json:"token"`
	TransactionId string `json:"tid,omitempty"`
	IssuedAt      int64  `json:"iat,omitempty"`
	Issuer        string `json:"iss,omitempty"`
	Expiration    int64  `json:"exp,omitempty"`
	Action        Action `json:"action"`
	Parameterized bool   `json:"param,omitempty"`
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	aux := struct {
		*alias
		Action json.RawMessage `json:"action"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Action) == 0 || string(aux.Action) == "null" {
		return fmt.Errorf("payload has no action")
	}
	action, err := UnmarshalAction(aux.Action)
	if err != nil {
		return err
	}
	p.Action = action
	return nil
}

func (p *Payload) HasExpiration() bool {
	return p.Expiration != 0
}
