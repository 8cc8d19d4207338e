package callback

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/codec"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/schema"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	codec    *codec.PayloadCodec
	builder  *PayloadBuilder
	resolver *Resolver
	now      time.Time
}

func newFixture(t *testing.T, policy Policy) *fixture {
	validator := schema.MustNewValidator()
	c := codec.NewPayloadCodec(nil, validator)
	f := &fixture{
		codec:    c,
		builder:  NewPayloadBuilder(policy, validator),
		resolver: NewResolver(c, validator, policy),
		now:      time.Unix(1700000000, 0),
	}
	f.resolver.now = func() time.Time { return f.now }
	return f
}

// issue builds the callback URL for action and returns its query.
func (f *fixture) issue(t *testing.T, action model.Action, params bool, expiration *time.Time) url.Values {
	payloads, err := f.builder.Build(BuildRequest{
		Token:                  "task-token",
		TransactionId:          "tid",
		Timestamp:              f.now,
		Actions:                []model.Action{action},
		Expiration:             expiration,
		EnableOutputParameters: params,
	})
	require.NoError(t, err)
	encoded, err := f.codec.Encode(context.Background(), payloads[action.GetName()])
	require.NoError(t, err)
	u, err := url.Parse(GetUrl("https://example.com/prod", action.GetName(), action.GetType(), encoded))
	require.NoError(t, err)
	require.Equal(t, "/prod/respond", u.Path)
	return u.Query()
}

func get(query url.Values) *Request {
	return &Request{Method: http.MethodGet, Query: query, Headers: http.Header{}}
}

func post(query url.Values, body string) *Request {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json; charset=utf-8")
	return &Request{Method: http.MethodPost, Query: query, Headers: headers, Body: []byte(body)}
}

func fooOutcomes() *model.PostAction {
	a := model.NewSuccessOutcome("a", map[string]any{"type": "object", "required": []any{"foo"}})
	a.OutputPath = "$.foo"
	b := model.NewFailureOutcome("b", map[string]any{"type": "object", "required": []any{"not_foo"}})
	b.Error = "NotFoo"
	b.CausePath = "$.not_foo"
	b.Response = &model.ResponseSpec{Text: "rejected"}
	action := model.NewPostAction("form", a, b)
	action.Response = &model.ResponseSpec{Text: "thanks"}
	return action
}

func TestBuild(t *testing.T) {
	f := newFixture(t, Policy{})
	exp := f.now.Add(time.Hour)

	payloads, err := f.builder.Build(BuildRequest{
		Token:                  "task-token",
		TransactionId:          "tid",
		Timestamp:              f.now,
		Actions:                []model.Action{model.NewSuccessAction("ok", "done"), fooOutcomes()},
		Expiration:             &exp,
		EnableOutputParameters: true,
		Issuer:                 "issuer",
	})
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	require.True(t, payloads["ok"].Parameterized)
	require.False(t, payloads["form"].Parameterized)
	require.Equal(t, exp.Unix(), payloads["ok"].Expiration)
	require.Equal(t, f.now.Unix(), payloads["ok"].IssuedAt)
	require.Equal(t, "issuer", payloads["form"].Issuer)
	require.Equal(t, "tid", payloads["form"].TransactionId)
}

func TestBuildErrors(t *testing.T) {
	f := newFixture(t, Policy{})
	past := f.now.Add(-time.Second)

	_, err := f.builder.Build(BuildRequest{
		Token:     "t",
		Timestamp: f.now,
		Actions:   []model.Action{model.NewHeartbeatAction("a"), model.NewSuccessAction("a", 1.0)},
	})
	require.True(t, errors.Is(err, api.ErrDuplicateActionName))

	_, err = f.builder.Build(BuildRequest{
		Token:      "t",
		Timestamp:  f.now,
		Actions:    []model.Action{model.NewHeartbeatAction("a")},
		Expiration: &past,
	})
	require.True(t, errors.Is(err, api.ErrInvalidDate))

	_, err = newFixture(t, Policy{DisableOutputParameters: true}).builder.Build(BuildRequest{
		Token:                  "t",
		Timestamp:              f.now,
		Actions:                []model.Action{model.NewHeartbeatAction("a")},
		EnableOutputParameters: true,
	})
	require.True(t, errors.Is(err, api.ErrParametersDisabled))

	_, err = newFixture(t, Policy{DisableOutputParameters: true}).builder.Build(BuildRequest{
		Token:                  "t",
		Timestamp:              f.now,
		Actions:                []model.Action{fooOutcomes()},
		EnableOutputParameters: true,
	})
	require.NoError(t, err)

	_, err = newFixture(t, Policy{DisablePostActions: true}).builder.Build(BuildRequest{
		Token:     "t",
		Timestamp: f.now,
		Actions:   []model.Action{fooOutcomes()},
	})
	require.True(t, errors.Is(err, api.ErrPostActionsDisabled))

	badSchema := model.NewPostAction("form", model.NewHeartbeatOutcome("x", map[string]any{"type": 12}))
	_, err = f.builder.Build(BuildRequest{Token: "t", Timestamp: f.now, Actions: []model.Action{badSchema}})
	require.True(t, errors.Is(err, api.ErrInvalidPostActionOutcome))

	badPathOutcome := model.NewSuccessOutcome("x", map[string]any{})
	badPathOutcome.OutputPath = "foo["
	badPath := model.NewPostAction("form", badPathOutcome)
	_, err = f.builder.Build(BuildRequest{Token: "t", Timestamp: f.now, Actions: []model.Action{badPath}})
	require.True(t, errors.Is(err, api.ErrInvalidJsonPath))
}

func TestParseExpiration(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	exp, err := ParseExpiration("2030-01-01T01:00:00Z", now)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())

	_, err = ParseExpiration("2029-12-31T23:00:00Z", now)
	require.True(t, errors.Is(err, api.ErrInvalidDate))
	_, err = ParseExpiration("tomorrow", now)
	require.True(t, errors.Is(err, api.ErrInvalidDate))
}

func TestValidateExpiration(t *testing.T) {
	now := time.Now()
	expired := &model.Payload{Expiration: now.Add(-time.Second).Unix()}
	require.True(t, errors.Is(ValidateExpiration(expired, now), api.ErrExpiredPayload))

	valid := &model.Payload{Expiration: now.Add(time.Hour).Unix()}
	require.NoError(t, ValidateExpiration(valid, now))
	require.NoError(t, ValidateExpiration(&model.Payload{}, now))
}

func TestResolveSimpleActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	success := model.NewSuccessAction("ok", map[string]any{"approved": true})
	success.Response = &model.ResponseSpec{Redirect: "https://example.com/done"}
	res, err := f.resolver.Resolve(ctx, get(f.issue(t, success, false, nil)))
	require.NoError(t, err)
	require.Equal(t, model.SIGNAL_SUCCESS, res.Signal.Kind)
	require.Equal(t, "task-token", res.Signal.Token)
	require.Equal(t, map[string]any{"approved": true}, res.Signal.Output)
	require.Equal(t, "https://example.com/done", res.Response.Redirect)
	require.Nil(t, res.Parameters)
	require.Equal(t, -1, res.OutcomeIndex)

	res, err = f.resolver.Resolve(ctx, get(f.issue(t, model.NewFailureAction("no", "Rejected", "by $user"), false, nil)))
	require.NoError(t, err)
	require.Equal(t, model.SIGNAL_FAILURE, res.Signal.Kind)
	require.Equal(t, "Rejected", res.Signal.Error)
	require.Equal(t, "by $user", res.Signal.Cause)

	res, err = f.resolver.Resolve(ctx, get(f.issue(t, model.NewHeartbeatAction("ping"), false, nil)))
	require.NoError(t, err)
	require.Equal(t, model.SIGNAL_HEARTBEAT, res.Signal.Kind)
}

func TestResolveParameters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	query := f.issue(t, model.NewSuccessAction("ok", map[string]any{"user": "$user", "note": "${note}!"}), true, nil)
	query.Set("user", "alice")
	query.Set("note", "hi")
	res, err := f.resolver.Resolve(ctx, get(query))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"user": "alice", "note": "hi!"}, res.Signal.Output)
	require.Equal(t, map[string]string{"user": "alice", "note": "hi"}, res.Parameters)

	query.Del("note")
	_, err = f.resolver.Resolve(ctx, get(query))
	require.True(t, errors.Is(err, api.ErrOutputFormatting))

	disabled := newFixture(t, Policy{DisableOutputParameters: true})
	disabled.resolver.codec = f.codec
	_, err = disabled.resolver.Resolve(ctx, get(f.issue(t, model.NewHeartbeatAction("ping"), true, nil)))
	require.True(t, errors.Is(err, api.ErrParametersDisabled))
}

func TestResolvePayloadChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	_, err := f.resolver.Resolve(ctx, get(url.Values{"action": {"ok"}}))
	require.True(t, errors.Is(err, api.ErrInvalidPayload))

	_, err = f.resolver.Resolve(ctx, get(url.Values{"data": {"1-!!!"}}))
	require.True(t, errors.Is(err, api.ErrInvalidPayload))

	exp := f.now.Add(time.Minute)
	query := f.issue(t, model.NewHeartbeatAction("ping"), false, &exp)
	_, err = f.resolver.Resolve(ctx, get(query))
	require.NoError(t, err)
	f.now = f.now.Add(2 * time.Minute)
	_, err = f.resolver.Resolve(ctx, get(query))
	require.True(t, errors.Is(err, api.ErrExpiredPayload))
	f.now = f.now.Add(-2 * time.Minute)

	query.Set("action", "other")
	_, err = f.resolver.Resolve(ctx, get(query))
	require.True(t, errors.Is(err, api.ErrActionMismatched))

	query.Del("action")
	query.Set("type", "success")
	_, err = f.resolver.Resolve(ctx, get(query))
	require.True(t, errors.Is(err, api.ErrActionMismatched))

	query.Del("type")
	_, err = f.resolver.Resolve(ctx, get(query))
	require.NoError(t, err)
}

func TestResolvePostFirstMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})
	query := f.issue(t, fooOutcomes(), false, nil)

	res, err := f.resolver.Resolve(ctx, post(query, `{"foo": "bar", "not_foo": "baz"}`))
	require.NoError(t, err)
	require.Equal(t, 0, res.OutcomeIndex)
	require.Equal(t, "a", res.Outcome.GetName())
	require.Equal(t, model.SIGNAL_SUCCESS, res.Signal.Kind)
	require.Equal(t, "bar", res.Signal.Output)
	require.Equal(t, "thanks", res.Response.Text)

	res, err = f.resolver.Resolve(ctx, post(query, `{"not_foo": "bar"}`))
	require.NoError(t, err)
	require.Equal(t, 1, res.OutcomeIndex)
	require.Equal(t, model.SIGNAL_FAILURE, res.Signal.Kind)
	require.Equal(t, "NotFoo", res.Signal.Error)
	require.Equal(t, "bar", res.Signal.Cause)
	require.Equal(t, "rejected", res.Response.Text)

	_, err = f.resolver.Resolve(ctx, post(query, `{}`))
	require.True(t, errors.Is(err, api.ErrInvalidPostActionBody))
}

func TestResolvePostPaths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	output := model.NewSuccessOutcome("out", map[string]any{"type": "object"})
	output.OutputPath = "$.foo"
	query := f.issue(t, model.NewPostAction("form", output), false, nil)

	res, err := f.resolver.Resolve(ctx, post(query, `{"foo": {"bar": "baz"}}`))
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"bar": "baz"}}, res.Signal.Output)
	data, err := res.Signal.OutputJSON()
	require.NoError(t, err)
	require.JSONEq(t, `[{"bar": "baz"}]`, data)

	res, err = f.resolver.Resolve(ctx, post(query, `{"foo": "bar"}`))
	require.NoError(t, err)
	require.Equal(t, "bar", res.Signal.Output)

	res, err = f.resolver.Resolve(ctx, post(query, `{"foo": null}`))
	require.NoError(t, err)
	require.Nil(t, res.Signal.Output)
	data, err = res.Signal.OutputJSON()
	require.NoError(t, err)
	require.Equal(t, "null", data)

	quoted := model.NewSuccessOutcome("quoted", map[string]any{"type": "object"})
	quoted.OutputPath = "$['foo']['bar']"
	query = f.issue(t, model.NewPostAction("form", quoted), false, nil)
	res, err = f.resolver.Resolve(ctx, post(query, `{"foo": {"bar": "baz"}}`))
	require.NoError(t, err)
	require.Equal(t, "baz", res.Signal.Output)

	failure := model.NewFailureOutcome("fail", map[string]any{"type": "object"})
	failure.ErrorPath = "$.code"
	failure.CausePath = "$.details"
	query = f.issue(t, model.NewPostAction("form", failure), false, nil)

	res, err = f.resolver.Resolve(ctx, post(query, `{"details": ["a", "b"]}`))
	require.NoError(t, err)
	require.Equal(t, "", res.Signal.Error)
	require.JSONEq(t, `[["a", "b"]]`, res.Signal.Cause)

	res, err = f.resolver.Resolve(ctx, post(query, `{"code": null, "details": "x"}`))
	require.NoError(t, err)
	require.Equal(t, "", res.Signal.Error)
	require.Equal(t, "x", res.Signal.Cause)

	body := model.NewSuccessOutcome("body", map[string]any{})
	body.OutputBody = true
	query = f.issue(t, model.NewPostAction("form", body), false, nil)
	res, err = f.resolver.Resolve(ctx, post(query, `{"any": [1, 2]}`))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"any": []any{1.0, 2.0}}, res.Signal.Output)
}

func TestResolvePostProtocolErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})
	query := f.issue(t, fooOutcomes(), false, nil)

	_, err := f.resolver.Resolve(ctx, get(query))
	var he *api.HttpResponseError
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusMethodNotAllowed, he.StatusCode)
	require.Equal(t, "POST", he.Headers["Allow"])

	req := post(query, `{"foo": 1}`)
	req.Headers.Set("Content-Type", "text/plain")
	_, err = f.resolver.Resolve(ctx, req)
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusUnsupportedMediaType, he.StatusCode)

	_, err = f.resolver.Resolve(ctx, post(query, `{"foo": `))
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusBadRequest, he.StatusCode)
	require.Equal(t, api.CODE_INVALID_JSON, he.Body.(model.ErrorResponse).Error)

	disabled := newFixture(t, Policy{DisablePostActions: true})
	_, err = disabled.resolver.Resolve(ctx, post(query, `{"foo": 1}`))
	require.True(t, errors.Is(err, api.ErrPostActionsDisabled))
}
