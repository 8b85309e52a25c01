package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/toolbench/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultAddr is where the daemon listens unless told otherwise.
const DefaultAddr = "127.0.0.1:7467"

// Server provides the HTTP API for toolbench.
type Server struct {
	service *Service
	addr    string
	server  *http.Server
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithInvokeRate limits tool invocations to perSecond with the given burst.
func WithInvokeRate(perSecond float64, burst int) ServerOption {
	return func(s *Server) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string, opts ...ServerOption) *Server {
	s := &Server{
		service: service,
		addr:    addr,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		log:     service.log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Catalog endpoints
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/tools/raw", s.handleRawTools)
	mux.HandleFunc("/tools/", s.handleToolByID)
	mux.HandleFunc("/servers", s.handleServers)
	mux.HandleFunc("/providers", s.handleProviders)
	mux.HandleFunc("/refresh", s.handleRefresh)

	// Selection and history
	mux.HandleFunc("/selection", s.handleSelection)
	mux.HandleFunc("/history", s.handleHistory)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	s.log.WithField("addr", s.addr).Info("starting toolbench daemon")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleTools handles GET /tools?q=
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Tools(r.URL.Query().Get("q")))
}

// handleRawTools handles GET /tools/raw
func (s *Server) handleRawTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.RawTools())
}

// handleToolByID handles /tools/{id} and /tools/{id}/invoke
func (s *Server) handleToolByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/tools/")
	parts := strings.Split(path, "/")

	id, err := url.PathUnescape(parts[0])
	if err != nil || id == "" {
		http.Error(w, "tool id required", http.StatusBadRequest)
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTool(w, r, id)
	case action == "invoke" && r.Method == http.MethodPost:
		s.invokeTool(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) getTool(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := s.service.Tool(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type invokeRequest struct {
	Parameters map[string]any `json:"parameters"`
}

func (s *Server) invokeTool(w http.ResponseWriter, r *http.Request, id string) {
	if !s.limiter.Allow() {
		writeError(w, ErrRateLimited)
		return
	}

	var req invokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	result, err := s.service.Invoke(r.Context(), id, req.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleServers handles GET /servers?q=
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Servers(r.URL.Query().Get("q")))
}

// handleProviders handles GET /providers
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Providers())
}

// handleRefresh handles POST /refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]any{"ok": true}
	if err := s.service.Refresh(r.Context()); err != nil {
		resp["ok"] = false
		resp["error"] = err.Error()
	}
	resp["providers"] = s.service.Providers()
	writeJSON(w, http.StatusOK, resp)
}

type selectRequest struct {
	Identifier string `json:"identifier"`
}

type selectionResponse struct {
	Selected any `json:"selected"`
}

// handleSelection handles GET, PUT and DELETE /selection
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, selectionResponse{Selected: s.service.Selected()})
	case http.MethodPut, http.MethodPost:
		var req selectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
			http.Error(w, "identifier required", http.StatusBadRequest)
			return
		}
		tool, err := s.service.Select(r.Context(), req.Identifier)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, selectionResponse{Selected: tool})
	case http.MethodDelete:
		s.service.ClearSelection(r.Context())
		writeJSON(w, http.StatusOK, selectionResponse{})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHistory handles GET /history?tool=&limit=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	history, err := s.service.History(r.Context(), r.URL.Query().Get("tool"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []models.Invocation{}
	}
	writeJSON(w, http.StatusOK, history)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	health := s.service.Health(r.Context())
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrToolNotFound), errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
