package model

import "encoding/json"

type SignalKind string

const SIGNAL_SUCCESS SignalKind = "success"
const SIGNAL_FAILURE SignalKind = "failure"
const SIGNAL_HEARTBEAT SignalKind = "heartbeat"

// Signal is the terminal instruction delivered to the workflow engine for a task token.
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Token  string     `json:"token"`
	Output any        `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
	Cause  string     `json:"cause,omitempty"`
}

// OutputJSON is the output as JSON text, the form workflow engines accept.
func (s Signal) OutputJSON() (string, error) {
	data, err := json.Marshal(s.Output)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
