package callback

import (
	"context"
	"net/http"
	"net/url"
	"time"

	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/codec"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/schema"
	"github.com/mohitkumar/callbackurls/util"
)

// Request is an incoming callback as seen by the resolver.
type Request struct {
	Method  string
	Query   url.Values
	Headers http.Header
	Body    []byte
}

// Resolution is what a callback resolves to: the signal for the workflow
// engine plus what is needed to render the reply.
type Resolution struct {
	Payload *model.Payload
	Signal  *model.Signal
	// Response is the outcome's response spec when it has one, else the action's.
	Response *model.ResponseSpec
	// Parameters is nil unless the payload allows parameterization.
	Parameters   map[string]string
	Outcome      model.Outcome
	OutcomeIndex int
	DecodeTime   time.Duration
}

type Resolver struct {
	codec     *codec.PayloadCodec
	validator *schema.Validator
	policy    Policy
	now       func() time.Time
}

func NewResolver(payloadCodec *codec.PayloadCodec, validator *schema.Validator, policy Policy) *Resolver {
	return &Resolver{
		codec:     payloadCodec,
		validator: validator,
		policy:    policy,
		now:       time.Now,
	}
}

// Resolve checks the payload carried by req and decides which signal to send.
// It never contacts the workflow engine.
func (r *Resolver) Resolve(ctx context.Context, req *Request) (*Resolution, error) {
	actionName, actionType, encoded, parameters, found := LoadFromRequest(req.Query)
	if !found {
		return nil, api.NewRequestError(api.CODE_INVALID_PAYLOAD, "Missing payload")
	}

	start := time.Now()
	payload, err := r.codec.Decode(ctx, encoded)
	if err != nil {
		return nil, err
	}
	res := &Resolution{
		Payload:      payload,
		OutcomeIndex: -1,
		DecodeTime:   time.Since(start),
	}

	if err := ValidateExpiration(payload, r.now()); err != nil {
		return nil, err
	}

	action := payload.Action
	if actionName != "" && actionName != action.GetName() {
		return nil, api.NewRequestError(api.CODE_ACTION_MISMATCHED, "The action name says %s in the url but %s in the payload", actionName, action.GetName())
	}
	if actionType != "" && actionType != string(action.GetType()) {
		return nil, api.NewRequestError(api.CODE_ACTION_MISMATCHED, "The action type says %s in the url but %s in the payload", actionType, action.GetType())
	}

	if payload.Parameterized {
		if r.policy.DisableOutputParameters {
			return nil, api.NewRequestError(api.CODE_PARAMETERS_DISABLED, "Parameters are disabled")
		}
		res.Parameters = parameters
	}

	res.Response = action.GetResponse()
	switch a := action.(type) {
	case *model.SuccessAction:
		output, err := util.ResolveParams(a.Output, res.Parameters)
		if err != nil {
			return nil, outputFormattingError(err)
		}
		res.Signal = &model.Signal{Kind: model.SIGNAL_SUCCESS, Token: payload.Token, Output: output}
	case *model.FailureAction:
		signal := &model.Signal{Kind: model.SIGNAL_FAILURE, Token: payload.Token}
		if signal.Error, err = util.ResolveString(a.Error, res.Parameters); err != nil {
			return nil, outputFormattingError(err)
		}
		if signal.Cause, err = util.ResolveString(a.Cause, res.Parameters); err != nil {
			return nil, outputFormattingError(err)
		}
		res.Signal = signal
	case *model.HeartbeatAction:
		res.Signal = &model.Signal{Kind: model.SIGNAL_HEARTBEAT, Token: payload.Token}
	case *model.PostAction:
		if err := r.resolvePost(a, req, res); err != nil {
			return nil, err
		}
	default:
		return nil, api.NewRequestError(api.CODE_INVALID_ACTION, "Unexpected action type %s", action.GetType())
	}
	return res, nil
}

func (r *Resolver) resolvePost(action *model.PostAction, req *Request, res *Resolution) error {
	if r.policy.DisablePostActions {
		return api.NewRequestError(api.CODE_POST_ACTIONS_DISABLED, "Post actions are disabled")
	}
	body, err := LoadPostActionBody(req)
	if err != nil {
		return err
	}
	index, outcome, err := SelectOutcome(action, body, r.validator)
	if err != nil {
		return err
	}
	signal, err := outcomeSignal(outcome, res.Payload.Token, body, res.Parameters)
	if err != nil {
		return err
	}
	res.Signal = signal
	res.Outcome = outcome
	res.OutcomeIndex = index
	if outcome.GetResponse() != nil {
		res.Response = outcome.GetResponse()
	}
	return nil
}

// ValidateExpiration rejects a payload whose expiration lies before now.
func ValidateExpiration(payload *model.Payload, now time.Time) error {
	if !payload.HasExpiration() {
		return nil
	}
	exp := time.Unix(payload.Expiration, 0)
	if now.After(exp) {
		return api.NewRequestError(api.CODE_EXPIRED_PAYLOAD, "Response expired on %s", exp.UTC().Format(time.RFC3339))
	}
	return nil
}
