package render

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/util"
)

const CONTENT_TYPE_JSON = "application/json"
const CONTENT_TYPE_HTML = "text/html"
const CONTENT_TYPE_TEXT = "text/plain"

type Response struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	// OverrideApplied is set when the body came from a response spec rather
	// than the default rendering.
	OverrideApplied bool
	Redirected      bool
}

// Write sends the response to w.
func (r *Response) Write(w http.ResponseWriter) {
	for key, values := range r.Headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(r.StatusCode)
	if len(r.Body) > 0 {
		w.Write(r.Body)
	}
}

// Render produces the reply for statusCode. A redirect in spec wins over
// everything, including error statuses. Otherwise the content type is
// negotiated from accept and the matching override in spec, if any, replaces
// the default rendering of defaultBody. Overrides go through template
// substitution with params.
func Render(statusCode int, defaultBody any, accept string, spec *model.ResponseSpec, params map[string]string) (*Response, error) {
	if spec.HasRedirect() {
		location, err := util.ResolveString(spec.Redirect, params)
		if err != nil {
			return nil, formattingError(err)
		}
		headers := http.Header{}
		headers.Set("Location", location)
		return &Response{
			StatusCode:      http.StatusSeeOther,
			Headers:         headers,
			OverrideApplied: true,
			Redirected:      true,
		}, nil
	}

	contentType := Negotiate(accept)
	resp := &Response{
		StatusCode:  statusCode,
		Headers:     http.Header{},
		ContentType: contentType,
	}
	resp.Headers.Set("Content-Type", contentType)

	var err error
	switch contentType {
	case CONTENT_TYPE_HTML:
		if spec != nil && spec.Html != "" {
			resp.OverrideApplied = true
			var body string
			if body, err = util.ResolveString(spec.Html, params); err == nil {
				resp.Body = []byte(body)
			}
		} else {
			resp.Body, err = defaultHtml(statusCode, defaultBody)
		}
	case CONTENT_TYPE_TEXT:
		if spec != nil && spec.Text != "" {
			resp.OverrideApplied = true
			var body string
			if body, err = util.ResolveString(spec.Text, params); err == nil {
				resp.Body = []byte(body)
			}
		} else {
			resp.Body, err = json.Marshal(defaultBody)
		}
	default:
		if spec != nil && spec.Json != nil {
			resp.OverrideApplied = true
			var body any
			if body, err = util.ResolveParams(spec.Json, params); err == nil {
				resp.Body, err = json.Marshal(body)
			}
		} else {
			resp.Body, err = json.Marshal(defaultBody)
		}
	}
	if err != nil {
		return nil, formattingError(err)
	}
	return resp, nil
}

// Negotiate picks the first supported media type listed in accept, in the
// order the client listed them. Quality values are ignored.
func Negotiate(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case CONTENT_TYPE_JSON:
			return CONTENT_TYPE_JSON
		case CONTENT_TYPE_HTML:
			return CONTENT_TYPE_HTML
		case CONTENT_TYPE_TEXT:
			return CONTENT_TYPE_TEXT
		}
	}
	return CONTENT_TYPE_JSON
}

func defaultHtml(statusCode int, body any) ([]byte, error) {
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, err
	}
	title := html.EscapeString(fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)))
	page := fmt.Sprintf("<!DOCTYPE html>\n<html><head><title>%s</title></head><body><h1>%s</h1><pre>%s</pre></body></html>\n",
		title, title, html.EscapeString(string(data)))
	return []byte(page), nil
}

func formattingError(err error) error {
	return api.WrapRequestError(api.CODE_OUTPUT_FORMATTING, err, "Failed to format response: %s", err.Error())
}
