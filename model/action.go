package model

import (
	"encoding/json"
	"fmt"
)

type ActionType string

const ACTION_TYPE_SUCCESS ActionType = "success"
const ACTION_TYPE_FAILURE ActionType = "failure"
const ACTION_TYPE_HEARTBEAT ActionType = "heartbeat"
const ACTION_TYPE_POST ActionType = "post"

// Action is one of *SuccessAction, *FailureAction, *HeartbeatAction or *PostAction.
type Action interface {
	GetName() string
	GetType() ActionType
	GetResponse() *ResponseSpec
	isAction()
}

type ActionBase struct {
	Name     string        `json:"name"`
	Type     ActionType    `json:"type"`
	Response *ResponseSpec `json:"response,omitempty"`
}

func (b *ActionBase) GetName() string {
	return b.Name
}

func (b *ActionBase) GetType() ActionType {
	return b.Type
}

func (b *ActionBase) GetResponse() *ResponseSpec {
	return b.Response
}

var _ Action = new(SuccessAction)
var _ Action = new(FailureAction)
var _ Action = new(HeartbeatAction)
var _ Action = new(PostAction)

type SuccessAction struct {
	ActionBase
	Output any `json:"output"`
}

type FailureAction struct {
	ActionBase
	Error string `json:"error,omitempty"`
	Cause string `json:"cause,omitempty"`
}

type HeartbeatAction struct {
	ActionBase
}

type PostAction struct {
	ActionBase
	Outcomes Outcomes `json:"outcomes"`
}

func (*SuccessAction) isAction()   {}
func (*FailureAction) isAction()   {}
func (*HeartbeatAction) isAction() {}
func (*PostAction) isAction()      {}

func NewSuccessAction(name string, output any) *SuccessAction {
	return &SuccessAction{
		ActionBase: ActionBase{Name: name, Type: ACTION_TYPE_SUCCESS},
		Output:     output,
	}
}

func NewFailureAction(name string, errorCode string, cause string) *FailureAction {
	return &FailureAction{
		ActionBase: ActionBase{Name: name, Type: ACTION_TYPE_FAILURE},
		Error:      errorCode,
		Cause:      cause,
	}
}

func NewHeartbeatAction(name string) *HeartbeatAction {
	return &HeartbeatAction{
		ActionBase: ActionBase{Name: name, Type: ACTION_TYPE_HEARTBEAT},
	}
}

func NewPostAction(name string, outcomes ...Outcome) *PostAction {
	return &PostAction{
		ActionBase: ActionBase{Name: name, Type: ACTION_TYPE_POST},
		Outcomes:   outcomes,
	}
}

// UnmarshalAction decodes a single action, dispatching on its "type" field.
func UnmarshalAction(data []byte) (Action, error) {
	var head struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var action Action
	switch head.Type {
	case ACTION_TYPE_SUCCESS:
		action = new(SuccessAction)
	case ACTION_TYPE_FAILURE:
		action = new(FailureAction)
	case ACTION_TYPE_HEARTBEAT:
		action = new(HeartbeatAction)
	case ACTION_TYPE_POST:
		action = new(PostAction)
	default:
		return nil, fmt.Errorf("unknown action type %q", head.Type)
	}
	if err := json.Unmarshal(data, action); err != nil {
		return nil, err
	}
	return action, nil
}

type Actions []Action

func (a *Actions) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	actions := make(Actions, 0, len(raw))
	for i := range raw {
		action, err := UnmarshalAction(raw[i])
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, action)
	}
	*a = actions
	return nil
}
