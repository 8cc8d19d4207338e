package rest

import (
	"net/http"

	"github.com/mohitkumar/callbackurls/callback"
)

func (s *Server) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req := &callback.Request{
		Method:  r.Method,
		Query:   r.URL.Query(),
		Headers: r.Header,
		Body:    body,
	}
	s.callbackService.HandleCallback(r.Context(), req).Write(w)
}
