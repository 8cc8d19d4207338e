package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/callbackurls/analytics"
	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/callback"
	"github.com/mohitkumar/callbackurls/codec"
	"github.com/mohitkumar/callbackurls/config"
	"github.com/mohitkumar/callbackurls/logger"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/render"
	"github.com/mohitkumar/callbackurls/schema"
	"github.com/mohitkumar/callbackurls/sink"
	"go.uber.org/zap"
)

const CREATE_URLS_EVENT = "create_urls"
const CALLBACK_EVENT = "callback"

type CallbackService struct {
	conf      config.Config
	codec     *codec.PayloadCodec
	validator *schema.Validator
	builder   *callback.PayloadBuilder
	resolver  *callback.Resolver
	sink      sink.Sink
	collector analytics.EventCollector
	now       func() time.Time
}

func NewCallbackService(conf config.Config, payloadCodec *codec.PayloadCodec, validator *schema.Validator, s sink.Sink, collector analytics.EventCollector) *CallbackService {
	policy := callback.Policy{
		DisableOutputParameters: conf.DisableOutputParameters,
		DisablePostActions:      conf.DisablePostActions,
	}
	return &CallbackService{
		conf:      conf,
		codec:     payloadCodec,
		validator: validator,
		builder:   callback.NewPayloadBuilder(policy, validator),
		resolver:  callback.NewResolver(payloadCodec, validator, policy),
		sink:      s,
		collector: collector,
		now:       time.Now,
	}
}

func newTransactionId() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HandleCreateUrls runs the create flow on a raw JSON request body and returns
// the status code and the body to send back.
func (s *CallbackService) HandleCreateUrls(ctx context.Context, body []byte) (int, any) {
	timestamp := s.now()
	transactionId := newTransactionId()
	event := &analytics.LogEvent{
		Event:                  CREATE_URLS_EVENT,
		TransactionId:          transactionId,
		Timestamp:              timestamp,
		ForceDisableParameters: s.conf.DisableOutputParameters,
	}
	defer s.collector.Record(event)

	req, err := s.parseCreateUrlsRequest(body)
	if err == nil {
		var resp *model.CreateUrlsResponse
		resp, err = s.createUrls(ctx, req, transactionId, timestamp, event)
		if err == nil {
			logger.Info("created callback urls", zap.String("transaction_id", transactionId), zap.Int("actions", len(resp.Urls)))
			return http.StatusOK, resp
		}
	}

	event.Error = errorInfo(err)
	status := api.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("error creating callback urls", zap.String("transaction_id", transactionId), zap.Error(err))
		return status, model.ErrorResponse{Error: api.CODE_SERVICE_ERROR, Message: api.Message(err)}
	}
	logger.Info("rejected create urls request", zap.String("transaction_id", transactionId), zap.String("error", api.Code(err)))
	return status, model.ErrorResponse{TransactionId: transactionId, Error: api.Code(err), Message: api.Message(err)}
}

func (s *CallbackService) parseCreateUrlsRequest(body []byte) (*model.CreateUrlsRequest, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_JSON, err, "Request body is not valid JSON: %s", err.Error())
	}
	if err := s.validator.ValidateCreateUrls(doc); err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_JSON, err, "Invalid request: %s", err.Error())
	}
	var req model.CreateUrlsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_JSON, err, "Invalid request: %s", err.Error())
	}
	return &req, nil
}

// CreateUrls builds one callback URL per action of req.
func (s *CallbackService) CreateUrls(ctx context.Context, req *model.CreateUrlsRequest) (*model.CreateUrlsResponse, error) {
	event := &analytics.LogEvent{
		Event:                  CREATE_URLS_EVENT,
		TransactionId:          newTransactionId(),
		Timestamp:              s.now(),
		ForceDisableParameters: s.conf.DisableOutputParameters,
	}
	defer s.collector.Record(event)
	resp, err := s.createUrls(ctx, req, event.TransactionId, event.Timestamp, event)
	if err != nil {
		event.Error = errorInfo(err)
	}
	return resp, err
}

func (s *CallbackService) createUrls(ctx context.Context, req *model.CreateUrlsRequest, transactionId string, timestamp time.Time, event *analytics.LogEvent) (*model.CreateUrlsResponse, error) {
	baseURL := s.resolveBaseURL(req.BaseURL, event)

	event.Actions = make(map[string]string, len(req.Actions))
	for _, action := range req.Actions {
		event.Actions[action.GetName()] = string(action.GetType())
		if spec := action.GetResponse(); spec != nil {
			event.Redirect = event.Redirect || spec.HasRedirect()
			event.ResponseOverride = event.ResponseOverride || spec.HasOverride()
		}
	}
	event.ParametersEnabled = req.EnableOutputParameters
	event.EnableParameterConflict = req.EnableOutputParameters && s.conf.DisableOutputParameters

	var expiration *time.Time
	if req.Expiration != "" {
		var err error
		expiration, err = callback.ParseExpiration(req.Expiration, timestamp)
		if err != nil {
			return nil, err
		}
		delta := expiration.Sub(timestamp)
		event.ExpirationDelta = &delta
	}

	payloads, err := s.builder.Build(callback.BuildRequest{
		Token:                  req.Token,
		TransactionId:          transactionId,
		Timestamp:              timestamp,
		Actions:                req.Actions,
		Expiration:             expiration,
		EnableOutputParameters: req.EnableOutputParameters,
		Issuer:                 s.conf.Issuer,
	})
	if err != nil {
		return nil, err
	}

	resp := &model.CreateUrlsResponse{
		TransactionId: transactionId,
		Urls:          make(map[string]string, len(payloads)),
	}
	if expiration != nil {
		resp.Expiration = expiration.Format(time.RFC3339Nano)
	}
	for name, payload := range payloads {
		encoded, err := s.codec.Encode(ctx, payload)
		if err != nil {
			return nil, err
		}
		resp.Urls[name] = callback.GetUrl(baseURL, name, payload.Action.GetType(), encoded)
	}
	return resp, nil
}

func (s *CallbackService) resolveBaseURL(spec *model.BaseURLSpec, event *analytics.LogEvent) string {
	if spec == nil {
		event.ApiId, event.Stage, event.Region = s.conf.ApiId, s.conf.Stage, s.conf.Region
		return s.conf.DefaultBaseURL()
	}
	if spec.URL != "" {
		return spec.URL
	}
	region := spec.Region
	if region == "" {
		region = s.conf.Region
	}
	event.ApiId, event.Stage, event.Region = spec.ApiId, spec.Stage, region
	return config.ApiGatewayURL(spec.ApiId, spec.Stage, region)
}

// HandleCallback resolves a callback request, delivers its signal and renders
// the reply. The reply is rendered first: a broken response template fails the
// request without sending a signal.
func (s *CallbackService) HandleCallback(ctx context.Context, req *callback.Request) *render.Response {
	event := &analytics.LogEvent{
		Event:                  CALLBACK_EVENT,
		Timestamp:              s.now(),
		ForceDisableParameters: s.conf.DisableOutputParameters,
	}
	defer s.collector.Record(event)
	accept := req.Headers.Get("Accept")

	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return s.errorResponse(err, accept, nil, nil, event)
	}
	s.describeResolution(res, event)

	body := model.CallbackResponse{
		Action: res.Payload.Action.GetName(),
		Type:   res.Payload.Action.GetType(),
	}
	if res.Outcome != nil {
		body.Outcome = res.Outcome.GetName()
	}
	resp, err := render.Render(http.StatusOK, body, accept, res.Response, res.Parameters)
	if err != nil {
		return s.errorResponse(err, accept, nil, nil, event)
	}

	start := time.Now()
	err = sink.Deliver(ctx, s.sink, res.Signal)
	event.SinkCallTime = time.Since(start)
	if err != nil {
		return s.errorResponse(err, accept, res.Response, res.Parameters, event)
	}
	event.Redirect = resp.Redirected
	event.ResponseOverride = resp.OverrideApplied
	logger.Info("delivered callback", zap.String("transaction_id", event.TransactionId), zap.String("action", body.Action), zap.String("kind", string(res.Signal.Kind)))
	return resp
}

func (s *CallbackService) describeResolution(res *callback.Resolution, event *analytics.LogEvent) {
	event.TransactionId = res.Payload.TransactionId
	event.ActionName = res.Payload.Action.GetName()
	event.ActionType = string(res.Payload.Action.GetType())
	event.ParametersEnabled = res.Parameters != nil
	event.DecodeTime = res.DecodeTime
	if post, ok := res.Payload.Action.(*model.PostAction); ok {
		for _, outcome := range post.Outcomes {
			event.PostOutcomeNames = append(event.PostOutcomeNames, outcome.GetName())
		}
		event.PostOutcomeIndex = res.OutcomeIndex
	}
}

// errorResponse renders err through the generic envelope. Only a redirect
// survives from spec: content overrides describe success, not failure.
func (s *CallbackService) errorResponse(err error, accept string, spec *model.ResponseSpec, params map[string]string, event *analytics.LogEvent) *render.Response {
	event.Error = errorInfo(err)

	var direct *api.HttpResponseError
	if errors.As(err, &direct) {
		logger.Info("rejected callback request", zap.String("error", direct.Code), zap.Int("status", direct.StatusCode))
		return directResponse(direct)
	}

	status := api.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("error processing callback", zap.String("transaction_id", event.TransactionId), zap.Error(err))
	} else {
		logger.Info("rejected callback request", zap.String("transaction_id", event.TransactionId), zap.String("error", api.Code(err)))
	}
	body := model.ErrorResponse{Error: api.Code(err), Message: api.Message(err)}

	var redirectOnly *model.ResponseSpec
	if spec.HasRedirect() {
		redirectOnly = &model.ResponseSpec{Redirect: spec.Redirect}
	}
	resp, renderErr := render.Render(status, body, accept, redirectOnly, params)
	if renderErr != nil {
		resp, renderErr = render.Render(status, body, accept, nil, nil)
	}
	if renderErr != nil {
		logger.Error("error rendering error response", zap.Error(renderErr))
		return &render.Response{StatusCode: http.StatusInternalServerError}
	}
	event.Redirect = resp.Redirected
	return resp
}

func directResponse(e *api.HttpResponseError) *render.Response {
	resp := &render.Response{
		StatusCode: e.StatusCode,
		Headers:    http.Header{},
	}
	for key, value := range e.Headers {
		resp.Headers.Set(key, value)
	}
	if e.Body != nil {
		data, err := json.Marshal(e.Body)
		if err != nil {
			logger.Error("error marshalling direct response body", zap.Error(err))
		} else {
			resp.Body = data
			if resp.Headers.Get("Content-Type") == "" {
				resp.Headers.Set("Content-Type", render.CONTENT_TYPE_JSON)
			}
		}
	}
	return resp
}

func errorInfo(err error) *analytics.ErrorInfo {
	kind := api.Kind(err)
	info := &analytics.ErrorInfo{Type: kind, Error: api.Code(err), Message: api.Message(err)}
	if kind == api.KIND_UNEXPECTED {
		info.Error = fmt.Sprintf("%T", rootCause(err))
		info.Message = err.Error()
	}
	return info
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
