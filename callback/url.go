package callback

import (
	"net/url"
	"strings"

	"github.com/mohitkumar/callbackurls/model"
)

const ACTION_NAME_QUERY_PARAM = "action"
const ACTION_TYPE_QUERY_PARAM = "type"
const PAYLOAD_QUERY_PARAM = "data"

const CALLBACK_PATH = "respond"

// GetUrl builds the callback URL for one action. The action name and type in
// the query are informational; the encoded payload is authoritative.
func GetUrl(baseURL string, actionName string, actionType model.ActionType, encodedPayload string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	var sb strings.Builder
	sb.WriteString(baseURL)
	sb.WriteString(CALLBACK_PATH)
	sb.WriteString("?")
	sb.WriteString(ACTION_NAME_QUERY_PARAM + "=" + url.QueryEscape(actionName))
	sb.WriteString("&" + ACTION_TYPE_QUERY_PARAM + "=" + url.QueryEscape(string(actionType)))
	sb.WriteString("&" + PAYLOAD_QUERY_PARAM + "=" + url.QueryEscape(encodedPayload))
	return sb.String()
}

// LoadFromRequest splits the callback query into the action hints, the encoded
// payload and the remaining parameters.
func LoadFromRequest(query url.Values) (actionName string, actionType string, payload string, parameters map[string]string, found bool) {
	actionName = query.Get(ACTION_NAME_QUERY_PARAM)
	actionType = query.Get(ACTION_TYPE_QUERY_PARAM)
	found = query.Has(PAYLOAD_QUERY_PARAM)
	payload = query.Get(PAYLOAD_QUERY_PARAM)
	parameters = make(map[string]string)
	for key := range query {
		switch key {
		case ACTION_NAME_QUERY_PARAM, ACTION_TYPE_QUERY_PARAM, PAYLOAD_QUERY_PARAM:
		default:
			parameters[key] = query.Get(key)
		}
	}
	return
}
