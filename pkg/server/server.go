// Package server exposes specifier translation over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /v1/backends
//	GET  /v1/translate?spec=build>=1&spec=numpy&backend=grayskull
//	POST /v1/translate  {"specs": ["build>=1"], "backends": ["static", "anaconda"]}
//
// A single backend query parameter restricts lookup to that backend plus
// the configured fallbacks, matching the CLI's --backend flag. The POST
// form's backends list is used exactly as given.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/condapip/pkg/buildinfo"
	cperrors "github.com/matzehuels/condapip/pkg/errors"
	"github.com/matzehuels/condapip/pkg/mapping"
)

const (
	maxSpecs     = 100
	maxBodyBytes = 1 << 20
)

// Server serves the translation API.
type Server struct {
	registry  *mapping.Registry
	backends  []string
	fallbacks []string
	logger    *log.Logger
	router    chi.Router
}

// New builds a Server resolving against reg with the default priority
// list backends followed by fallbacks. A nil logger discards output.
func New(reg *mapping.Registry, backends, fallbacks []string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{
		registry:  reg,
		backends:  backends,
		fallbacks: fallbacks,
		logger:    logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/backends", s.handleBackends)
		r.Get("/translate", s.handleTranslateQuery)
		r.Post("/translate", s.handleTranslateBody)
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readHeaderTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

type backendInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"` // 0 when not in the default list
}

type translateRequest struct {
	Specs    []string `json:"specs"`
	Backends []string `json:"backends,omitempty"`
}

type translateResponse struct {
	Backends []string              `json:"backends"`
	Results  []*mapping.Resolution `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	order := mapping.Priority(s.backends, s.fallbacks)
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i + 1
	}

	var out []backendInfo
	for _, name := range s.registry.Names() {
		out = append(out, backendInfo{Name: name, Priority: rank[name]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"backends": out, "priority": order})
}

func (s *Server) handleTranslateQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order := mapping.Priority(s.backends, s.fallbacks)
	if b := q.Get("backend"); b != "" {
		order = mapping.Priority([]string{b}, s.fallbacks)
	}
	s.translate(w, r, q["spec"], order)
}

func (s *Server) handleTranslateBody(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, cperrors.Wrap(cperrors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	order := req.Backends
	if len(order) == 0 {
		order = mapping.Priority(s.backends, s.fallbacks)
	}
	s.translate(w, r, req.Specs, order)
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request, specs, order []string) {
	if len(specs) == 0 {
		writeError(w, cperrors.New(cperrors.ErrCodeInvalidInput, "at least one spec is required"))
		return
	}
	if len(specs) > maxSpecs {
		writeError(w, cperrors.New(cperrors.ErrCodeInvalidInput, "too many specs (max %d)", maxSpecs))
		return
	}

	sources, err := s.registry.Sources(order)
	if err != nil {
		writeError(w, err)
		return
	}
	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
	results, err := mapping.NewResolver(sources, mapping.WithLogger(logger)).ResolveAll(r.Context(), specs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{Backends: order, Results: results})
}

// =============================================================================
// Helpers
// =============================================================================

type errorBody struct {
	Error struct {
		Code    cperrors.Code `json:"code"`
		Message string        `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	var body errorBody
	body.Error.Code = cperrors.GetCode(err)
	if body.Error.Code == "" {
		body.Error.Code = cperrors.ErrCodeInternal
	}
	body.Error.Message = cperrors.UserMessage(err)
	writeJSON(w, cperrors.HTTPStatus(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// echoRequestID returns the request ID assigned by middleware.RequestID,
// or the caller's own X-Request-Id, in the response headers.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
