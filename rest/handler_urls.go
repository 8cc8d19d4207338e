package rest

import (
	"fmt"
	"mime"
	"net/http"

	api "github.com/mohitkumar/callbackurls/api/v1"
)

// HandleCreateUrls accepts only a JSON POST; everything past that gate is the
// create flow's business.
func (s *Server) HandleCreateUrls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondWithError(w, http.StatusMethodNotAllowed, api.CODE_METHOD_NOT_ALLOWED, fmt.Sprintf("HTTP method %s is not supported", r.Method))
		return
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		respondWithError(w, http.StatusUnsupportedMediaType, api.CODE_UNSUPPORTED_MEDIA_TYPE, "Content-Type must be application/json")
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	status, resp := s.callbackService.HandleCreateUrls(r.Context(), body)
	respondWithJSON(w, status, resp)
}
