package callback

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/schema"
	"github.com/mohitkumar/callbackurls/util"
)

// ValidatePostAction checks a post action at creation time: post actions must be
// enabled, every outcome schema must compile and every path must parse.
func ValidatePostAction(action *model.PostAction, policy Policy, validator *schema.Validator) error {
	if policy.DisablePostActions {
		return api.NewRequestError(api.CODE_POST_ACTIONS_DISABLED, "Post actions are disabled")
	}
	for _, outcome := range action.Outcomes {
		if _, err := validator.Compile(outcome.GetSchema()); err != nil {
			return api.WrapRequestError(api.CODE_INVALID_POST_ACTION_OUTCOME, err, "Bad schema: %s", err.Error())
		}
		for _, path := range outcomePaths(outcome) {
			if _, err := util.CompileJsonPath(path); err != nil {
				return api.WrapRequestError(api.CODE_INVALID_JSON_PATH, err, "Bad path in outcome %s: %s", outcome.GetName(), err.Error())
			}
		}
	}
	return nil
}

func outcomePaths(outcome model.Outcome) []string {
	var paths []string
	switch o := outcome.(type) {
	case *model.SuccessOutcome:
		if o.OutputPath != "" {
			paths = append(paths, o.OutputPath)
		}
	case *model.FailureOutcome:
		if o.ErrorPath != "" {
			paths = append(paths, o.ErrorPath)
		}
		if o.CausePath != "" {
			paths = append(paths, o.CausePath)
		}
	}
	return paths
}

// LoadPostActionBody decodes the JSON body of a post action callback. Protocol
// violations come back as *api.HttpResponseError so they skip the error envelope.
func LoadPostActionBody(req *Request) (any, error) {
	if req.Method != http.MethodPost {
		return nil, &api.HttpResponseError{
			Code:       api.CODE_POST_ACTION_NOT_POSTED,
			Message:    fmt.Sprintf("HTTP method was %s", req.Method),
			StatusCode: http.StatusMethodNotAllowed,
			Headers:    map[string]string{"Allow": http.MethodPost},
		}
	}
	mediaType, _, err := mime.ParseMediaType(req.Headers.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, &api.HttpResponseError{
			Code:       api.CODE_UNSUPPORTED_MEDIA_TYPE,
			Message:    "Post action body must be JSON",
			StatusCode: http.StatusUnsupportedMediaType,
		}
	}
	var body any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, &api.HttpResponseError{
			Code:       api.CODE_INVALID_POST_ACTION_BODY,
			Message:    err.Error(),
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body: model.ErrorResponse{
				Error:   api.CODE_INVALID_JSON,
				Message: err.Error(),
			},
		}
	}
	return body, nil
}

// SelectOutcome returns the first outcome, in declaration order, whose schema
// accepts body. Later outcomes are never consulted once one matches.
func SelectOutcome(action *model.PostAction, body any, validator *schema.Validator) (int, model.Outcome, error) {
	for i, outcome := range action.Outcomes {
		compiled, err := validator.Compile(outcome.GetSchema())
		if err != nil {
			return -1, nil, api.WrapRequestError(api.CODE_INVALID_POST_ACTION_OUTCOME, err, "Bad schema: %s", err.Error())
		}
		if compiled.Validate(body) == nil {
			return i, outcome, nil
		}
	}
	return -1, nil, api.NewRequestError(api.CODE_INVALID_POST_ACTION_BODY, "Body does not match any outcome")
}

// outcomeSignal resolves the signal for a selected outcome. Path fields are
// evaluated against body.
func outcomeSignal(outcome model.Outcome, token string, body any, params map[string]string) (*model.Signal, error) {
	switch o := outcome.(type) {
	case *model.SuccessOutcome:
		signal := &model.Signal{Kind: model.SIGNAL_SUCCESS, Token: token}
		switch {
		case o.OutputBody:
			signal.Output = body
		case o.OutputPath != "":
			matches, err := findPath(o.OutputPath, body)
			if err != nil {
				return nil, err
			}
			signal.Output = util.Collapse(matches)
		default:
			output, err := util.ResolveParams(o.Output, params)
			if err != nil {
				return nil, outputFormattingError(err)
			}
			signal.Output = output
		}
		return signal, nil
	case *model.FailureOutcome:
		signal := &model.Signal{Kind: model.SIGNAL_FAILURE, Token: token}
		var err error
		if signal.Error, err = failureField(o.Error, o.ErrorPath, body, params); err != nil {
			return nil, err
		}
		if signal.Cause, err = failureField(o.Cause, o.CausePath, body, params); err != nil {
			return nil, err
		}
		return signal, nil
	case *model.HeartbeatOutcome:
		return &model.Signal{Kind: model.SIGNAL_HEARTBEAT, Token: token}, nil
	}
	return nil, api.NewRequestError(api.CODE_INVALID_ACTION, "Unexpected outcome type %s", outcome.GetType())
}

func failureField(literal string, path string, body any, params map[string]string) (string, error) {
	if path == "" {
		value, err := util.ResolveString(literal, params)
		if err != nil {
			return "", outputFormattingError(err)
		}
		return value, nil
	}
	matches, err := findPath(path, body)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 || util.Collapse(matches) == nil {
		return "", nil
	}
	value, err := util.CollapseString(matches)
	if err != nil {
		return "", api.WrapRequestError(api.CODE_OUTPUT_FORMATTING, err, "Cannot serialize %s: %s", path, err.Error())
	}
	return value, nil
}

func findPath(expr string, body any) ([]any, error) {
	path, err := util.CompileJsonPath(expr)
	if err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_JSON_PATH, err, "Bad path: %s", err.Error())
	}
	return path.Find(body), nil
}

func outputFormattingError(err error) error {
	return api.WrapRequestError(api.CODE_OUTPUT_FORMATTING, err, "Failed to format output: %s", err.Error())
}
