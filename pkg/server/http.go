package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/gemmagate/pkg/history"
	"github.com/dasmlab/gemmagate/pkg/language"
	"github.com/dasmlab/gemmagate/pkg/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// maxBodyBytes bounds the translate request body.
const maxBodyBytes = 1 << 20

// HistoryReader lists recorded translations.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options configures an HTTPServer.
type Options struct {
	Addr      string
	StaticDir string
	// TranslateTimeout bounds a single translate request. Zero means no limit.
	TranslateTimeout time.Duration
	History          HistoryReader
	Logger           *logrus.Logger
}

// HTTPServer serves the web UI, the JSON API and Prometheus metrics.
type HTTPServer struct {
	resolver *service.Resolver
	opts     Options
	logger   *logrus.Logger
	srv      *http.Server
}

// NewHTTPServer creates a new HTTP server backed by resolver.
func NewHTTPServer(resolver *service.Resolver, opts Options) *HTTPServer {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	s := &HTTPServer{
		resolver: resolver,
		opts:     opts,
		logger:   logger,
	}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	if s.opts.StaticDir != "" {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.opts.StaticDir))))
	}

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/languages", s.handleLanguages)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/translate", s.handleTranslate)
	mux.HandleFunc("/api/history", s.handleHistory)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start listens and serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"addr": s.opts.Addr,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

const fallbackIndex = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>TranslateGemma</title></head>
<body><h1>TranslateGemma</h1><p>Web UI not found. The API is available at /api/translate.</p></body></html>
`

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.StaticDir != "" {
		index := filepath.Join(s.opts.StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, fallbackIndex)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	_, ready := s.resolver.Engines().Engine()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      Version,
		"engine_ready": ready,
	})
}

func (s *HTTPServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages": language.Supported(),
	})
}

func (s *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	cfg := s.resolver.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_size":   cfg.ModelSize,
		"languages":    cfg.Languages[:],
		"output_mode":  cfg.OutputMode,
		"backend_type": cfg.BackendType,
	})
}

func (s *HTTPServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body service.TranslateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorResponse{
			Detail: fmt.Sprintf("Invalid request body: %v", err),
			Reason: string(service.ReasonInvalidInput),
		})
		return
	}

	ctx := r.Context()
	if s.opts.TranslateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TranslateTimeout)
		defer cancel()
	}

	res, err := s.resolver.Translate(ctx, body.Request())
	if err != nil {
		writeJSON(w, StatusCode(err), service.NewErrorResponse(err))
		return
	}
	writeJSON(w, http.StatusOK, service.NewTranslateResponse(res))
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.opts.History == nil {
		writeJSON(w, http.StatusNotFound, service.ErrorResponse{Detail: "History is disabled"})
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, service.ErrorResponse{
				Detail: fmt.Sprintf("Invalid limit %q", v),
				Reason: string(service.ReasonInvalidInput),
			})
			return
		}
		limit = n
	}

	entries, err := s.opts.History.Recent(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read history")
		writeJSON(w, http.StatusInternalServerError, service.ErrorResponse{Detail: "Failed to read history"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"translations": entries,
	})
}

// StatusCode maps a resolver error to an HTTP status.
func StatusCode(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch service.ReasonOf(err) {
	case service.ReasonInvalidInput, service.ReasonSameLanguage:
		return http.StatusBadRequest
	case service.ReasonEngineConstruction:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
