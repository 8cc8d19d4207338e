package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mohitkumar/callbackurls/analytics"
	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/codec"
	"github.com/mohitkumar/callbackurls/config"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/schema"
	"github.com/mohitkumar/callbackurls/service"
	"github.com/mohitkumar/callbackurls/sink"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	validator := schema.MustNewValidator()
	collector, err := analytics.NewEventCollector(analytics.DataCollectorConfig{CollectorType: analytics.NOOP_DATA_COLLECTOR}, nil)
	require.NoError(t, err)
	conf := config.Config{BaseURL: "http://callbacks.local/"}
	svc := service.NewCallbackService(conf, codec.NewPayloadCodec(nil, validator), validator, sink.NewMemorySink(), collector)
	s, err := NewServer(0, svc)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestServer(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, ts *httptest.Server){
		"test create and callback":   testCreateAndCallback,
		"test create urls gate":      testCreateUrlsGate,
		"test callback method guard": testCallbackMethodGuard,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newTestServer(t))
		})
	}
}

func testCreateAndCallback(t *testing.T, ts *httptest.Server) {
	body := `{"token": "task-1", "actions": [{"name": "approve", "type": "success", "output": {"ok": true}}]}`
	resp, err := http.Post(ts.URL+CREATE_URLS_PATH, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created model.CreateUrlsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	callbackURL, err := url.Parse(created.Urls["approve"])
	require.NoError(t, err)
	require.Equal(t, "callbacks.local", callbackURL.Host)

	resp, err = http.Get(ts.URL + callbackURL.Path + "?" + callbackURL.RawQuery)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var result model.CallbackResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, "approve", result.Action)
}

func testCreateUrlsGate(t *testing.T, ts *httptest.Server) {
	resp, err := http.Get(ts.URL + CREATE_URLS_PATH)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, http.MethodPost, resp.Header.Get("Allow"))

	resp, err = http.Post(ts.URL+CREATE_URLS_PATH, "text/plain", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = http.Post(ts.URL+CREATE_URLS_PATH, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody model.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	require.Equal(t, api.CODE_INVALID_JSON, errBody.Error)
}

func testCallbackMethodGuard(t *testing.T, ts *httptest.Server) {
	req, err := http.NewRequest(http.MethodDelete, ts.URL+CALLBACK_PATH, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(ts.URL + CALLBACK_PATH)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody model.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	require.Equal(t, api.CODE_INVALID_PAYLOAD, errBody.Error)
}

func TestBodyTooLarge(t *testing.T) {
	handler := newTestServer(t).Config.Handler
	oversized := `{"token": "` + strings.Repeat("x", MAX_BODY_SIZE) + `"}`
	for _, path := range []string{CREATE_URLS_PATH, CALLBACK_PATH + "?data=1-e30"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(oversized))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			var errBody model.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
			require.Equal(t, api.CODE_PAYLOAD_TOO_LARGE, errBody.Error)
		})
	}
}
