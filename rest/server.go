package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/logger"
	"github.com/mohitkumar/callbackurls/service"
	"go.uber.org/zap"
)

const CREATE_URLS_PATH = "/urls"
const CALLBACK_PATH = "/respond"

// MAX_BODY_SIZE bounds request bodies read by either endpoint.
const MAX_BODY_SIZE = 1 << 20

type Server struct {
	http.Server
	Port            int
	callbackService *service.CallbackService
}

func NewServer(httpPort int, callbackService *service.CallbackService) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		callbackService: callbackService,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc(CREATE_URLS_PATH, s.HandleCreateUrls)
	router.HandleFunc(CALLBACK_PATH, s.HandleCallback).Methods(http.MethodGet, http.MethodPost)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("elapsed", time.Since(start)))
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("error marshalling response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, errorCode string, message string) {
	respondWithJSON(w, code, map[string]string{"error": errorCode, "message": message})
}

// readBody reads at most MAX_BODY_SIZE bytes of r's body. A larger body is
// answered with 413 and reported as false.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MAX_BODY_SIZE))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, api.CODE_PAYLOAD_TOO_LARGE, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		logger.Error("error reading request body", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, api.CODE_INVALID_JSON, "Could not read request body")
		return nil, false
	}
	return body, true
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, POST")
	respondWithError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", fmt.Sprintf("HTTP method %s is not supported", r.Method))
}
