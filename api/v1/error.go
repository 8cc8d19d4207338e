package api_v1

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CODE_INVALID_JSON                = "InvalidJSON"
	CODE_DUPLICATE_ACTION_NAME       = "DuplicateActionName"
	CODE_PARAMETERS_DISABLED         = "ParametersDisabled"
	CODE_OUTPUT_FORMATTING           = "OutputFormatting"
	CODE_INVALID_PAYLOAD             = "InvalidPayload"
	CODE_EXPIRED_PAYLOAD             = "ExpiredPayload"
	CODE_ENCRYPTION_FAILED           = "EncryptionFailed"
	CODE_DECRYPTION_UNSUPPORTED      = "DecryptionUnsupported"
	CODE_ENCRYPTION_REQUIRED         = "EncryptionRequired"
	CODE_INVALID_ACTION              = "InvalidAction"
	CODE_INVALID_DATE                = "InvalidDate"
	CODE_ACTION_MISMATCHED           = "ActionMismatched"
	CODE_POST_ACTIONS_DISABLED       = "PostActionsDisabled"
	CODE_INVALID_POST_ACTION_OUTCOME = "InvalidPostActionOutcome"
	CODE_INVALID_JSON_PATH           = "InvalidJsonPath"
	CODE_INVALID_POST_ACTION_BODY    = "InvalidPostActionBody"
	CODE_POST_ACTION_NOT_POSTED      = "PostActionNotPosted"
	CODE_SERVICE_ERROR               = "ServiceError"
	CODE_UNSUPPORTED_MEDIA_TYPE      = "UnsupportedMediaType"
	CODE_METHOD_NOT_ALLOWED          = "MethodNotAllowed"
	CODE_PAYLOAD_TOO_LARGE           = "PayloadTooLarge"
	KIND_REQUEST_ERROR               = "RequestError"
	KIND_WORKFLOW_ERROR              = "WorkflowError"
	KIND_UNEXPECTED                  = "Unexpected"
)

// Sentinels for errors.Is; matching is by code.
var (
	ErrInvalidJSON              = &RequestError{Code: CODE_INVALID_JSON}
	ErrDuplicateActionName      = &RequestError{Code: CODE_DUPLICATE_ACTION_NAME}
	ErrParametersDisabled       = &RequestError{Code: CODE_PARAMETERS_DISABLED}
	ErrOutputFormatting         = &RequestError{Code: CODE_OUTPUT_FORMATTING}
	ErrInvalidPayload           = &RequestError{Code: CODE_INVALID_PAYLOAD}
	ErrExpiredPayload           = &RequestError{Code: CODE_EXPIRED_PAYLOAD}
	ErrEncryptionFailed         = &RequestError{Code: CODE_ENCRYPTION_FAILED}
	ErrDecryptionUnsupported    = &RequestError{Code: CODE_DECRYPTION_UNSUPPORTED}
	ErrEncryptionRequired       = &RequestError{Code: CODE_ENCRYPTION_REQUIRED}
	ErrInvalidAction            = &RequestError{Code: CODE_INVALID_ACTION}
	ErrInvalidDate              = &RequestError{Code: CODE_INVALID_DATE}
	ErrActionMismatched         = &RequestError{Code: CODE_ACTION_MISMATCHED}
	ErrPostActionsDisabled      = &RequestError{Code: CODE_POST_ACTIONS_DISABLED}
	ErrInvalidPostActionOutcome = &RequestError{Code: CODE_INVALID_POST_ACTION_OUTCOME}
	ErrInvalidJsonPath          = &RequestError{Code: CODE_INVALID_JSON_PATH}
	ErrInvalidPostActionBody    = &RequestError{Code: CODE_INVALID_POST_ACTION_BODY}
)

// RequestError is a client-caused failure rendered as a 400.
type RequestError struct {
	Code    string
	Message string
	Err     error
}

func NewRequestError(code string, format string, args ...any) *RequestError {
	return &RequestError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapRequestError keeps cause reachable through errors.Is/As.
func WrapRequestError(code string, cause error, format string, args ...any) *RequestError {
	return &RequestError{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s:%s", e.Code, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	t, ok := target.(*RequestError)
	return ok && t.Code == e.Code
}

func (e *RequestError) HTTPStatus() int {
	return http.StatusBadRequest
}

// WorkflowError is returned when the workflow engine rejects a signal for a
// reason attributable to the caller (bad token, task already closed, bad output).
type WorkflowError struct {
	Code    string
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s:%s", e.Code, e.Message)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) HTTPStatus() int {
	return http.StatusBadRequest
}

// HttpResponseError short-circuits the generic error envelope with a literal response.
type HttpResponseError struct {
	Code       string
	Message    string
	StatusCode int
	Headers    map[string]string
	Body       any
}

func (e *HttpResponseError) Error() string {
	return fmt.Sprintf("%s:%s", e.Code, e.Message)
}

func (e *HttpResponseError) HTTPStatus() int {
	return e.StatusCode
}

type httpStatuser interface {
	HTTPStatus() int
}

// HTTPStatus maps any error to the status it is rendered with.
func HTTPStatus(err error) int {
	var hs httpStatuser
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Kind classifies err for log events.
func Kind(err error) string {
	var re *RequestError
	var we *WorkflowError
	var he *HttpResponseError
	switch {
	case errors.As(err, &re), errors.As(err, &he):
		return KIND_REQUEST_ERROR
	case errors.As(err, &we):
		return KIND_WORKFLOW_ERROR
	}
	return KIND_UNEXPECTED
}

// Code returns the machine-readable code of err, or CODE_SERVICE_ERROR.
func Code(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Code
	}
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code
	}
	var he *HttpResponseError
	if errors.As(err, &he) {
		return he.Code
	}
	return CODE_SERVICE_ERROR
}

// Message returns the caller-facing message of err. Unexpected errors expose
// only their type and text, never internal detail beyond that.
func Message(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Message
	}
	var he *HttpResponseError
	if errors.As(err, &he) {
		return he.Message
	}
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	return fmt.Sprintf("%T: %s", root, err.Error())
}
