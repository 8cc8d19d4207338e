package sink

import (
	"context"
	"errors"
	"fmt"

	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/model"
)

// Errors a sink reports when the workflow engine rejects a signal for a reason
// the caller is responsible for.
var (
	ErrInvalidToken         = errors.New("InvalidToken")
	ErrInvalidOutput        = errors.New("InvalidOutput")
	ErrTaskDoesNotExist     = errors.New("TaskDoesNotExist")
	ErrTaskTimedOut         = errors.New("TaskTimedOut")
	ErrTaskAlreadyCompleted = errors.New("TaskAlreadyCompleted")
)

var clientErrors = []error{
	ErrInvalidToken,
	ErrInvalidOutput,
	ErrTaskDoesNotExist,
	ErrTaskTimedOut,
	ErrTaskAlreadyCompleted,
}

// Sink delivers terminal signals for task tokens to a workflow engine.
type Sink interface {
	SendSuccess(ctx context.Context, token string, output string) error
	SendFailure(ctx context.Context, token string, errorCode string, cause string) error
	SendHeartbeat(ctx context.Context, token string) error
}

// Deliver sends signal through s. Rejections the caller is responsible for are
// returned as *api.WorkflowError; anything else is returned wrapped.
func Deliver(ctx context.Context, s Sink, signal *model.Signal) error {
	var err error
	switch signal.Kind {
	case model.SIGNAL_SUCCESS:
		var output string
		output, err = signal.OutputJSON()
		if err != nil {
			return api.WrapRequestError(api.CODE_OUTPUT_FORMATTING, err, "Output is not serializable: %s", err.Error())
		}
		err = s.SendSuccess(ctx, signal.Token, output)
	case model.SIGNAL_FAILURE:
		err = s.SendFailure(ctx, signal.Token, signal.Error, signal.Cause)
	case model.SIGNAL_HEARTBEAT:
		err = s.SendHeartbeat(ctx, signal.Token)
	default:
		return fmt.Errorf("unknown signal kind %q", signal.Kind)
	}
	if err == nil {
		return nil
	}
	return Classify(signal.Kind, err)
}

// Classify turns a rejection by the workflow engine into *api.WorkflowError
// when the caller is responsible for it.
func Classify(kind model.SignalKind, err error) error {
	for _, clientErr := range clientErrors {
		if errors.Is(err, clientErr) {
			return &api.WorkflowError{Code: clientErr.Error(), Message: err.Error(), Err: err}
		}
	}
	return fmt.Errorf("send %s signal: %w", kind, err)
}
