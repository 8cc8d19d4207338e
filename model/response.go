package model

import "encoding/json"

// ResponseSpec overrides how a successful callback is rendered to the caller.
// A redirect wins over every content override.
type ResponseSpec struct {
	Redirect string         `json:"redirect,omitempty"`
	Json     map[string]any `json:"json,omitempty"`
	Html     string         `json:"html,omitempty"`
	Text     string         `json:"text,omitempty"`
}

func (r *ResponseSpec) HasRedirect() bool {
	return r != nil && r.Redirect != ""
}

func (r *ResponseSpec) HasOverride() bool {
	return r != nil && (r.Json != nil || r.Html != "" || r.Text != "")
}

// MarshalJSON keeps an empty json override, which renders as {}.
func (r ResponseSpec) MarshalJSON() ([]byte, error) {
	type alias ResponseSpec
	if r.Json == nil {
		return json.Marshal(alias(r))
	}
	return json.Marshal(struct {
		alias
		Json map[string]any `json:"json"`
	}{alias(r), r.Json})
}
