package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/dayplan/internal/ai"
	"github.com/teemow/dayplan/internal/calendar"
	"github.com/teemow/dayplan/internal/instrumentation"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/reconcile"
	"github.com/teemow/dayplan/internal/store"
)

// Default timeouts for the API server.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Server is the HTTP API surface: sync, tasks, meetings, and schedule
// generation.
type Server struct {
	store        *store.Store
	orchestrator *reconcile.Orchestrator
	aggregator   *calendar.Aggregator
	aiManager    *ai.Manager
	health       *HealthChecker
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
	httpServer   *http.Server
	addr         string
}

// Config holds the server dependencies.
type Config struct {
	Addr         string
	Store        *store.Store
	Orchestrator *reconcile.Orchestrator
	Aggregator   *calendar.Aggregator
	AIManager    *ai.Manager
	Metrics      *instrumentation.Metrics
	Logger       *slog.Logger
}

// New creates the API server.
func New(config Config) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		store:        config.Store,
		orchestrator: config.Orchestrator,
		aggregator:   config.Aggregator,
		aiManager:    config.AIManager,
		health:       NewHealthChecker(config.Store),
		metrics:      config.Metrics,
		logger:       config.Logger,
		addr:         config.Addr,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.health.RegisterHealthEndpoints(mux)

	mux.HandleFunc("POST /api/users/{user}/sync", s.handleSync)
	mux.HandleFunc("GET /api/users/{user}/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/users/{user}/tasks", s.handleCreateTask)
	mux.HandleFunc("POST /api/tasks/{id}/move", s.handleMoveTask)
	mux.HandleFunc("POST /api/users/{user}/tasks/reorder", s.handleReorderTasks)
	mux.HandleFunc("GET /api/users/{user}/meetings", s.handleListMeetings)
	mux.HandleFunc("POST /api/users/{user}/schedule", s.handleGenerateSchedule)

	return s.instrument(mux)
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.logger.Info("starting api server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting new requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		s.logger.Info("shutting down api server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// instrument wraps the handler with request logging and metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, routePattern(r), recorder.status, duration)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Duration("duration", duration))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routePattern returns the matched route pattern, falling back to the raw
// path for unmatched requests. Patterns keep metric cardinality bounded.
func routePattern(r *http.Request) string {
	if pattern := r.Pattern; pattern != "" {
		if _, path, found := strings.Cut(pattern, " "); found {
			return path
		}
		return pattern
	}
	return r.URL.Path
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	outcomes, err := s.orchestrator.SyncUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if outcomes == nil {
		outcomes = []reconcile.AccountOutcome{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"accounts": outcomes})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	listType := r.URL.Query().Get("list")
	if listType == "" {
		listType = store.ListUnprioritized
	}
	if listType != store.ListPrioritized && listType != store.ListUnprioritized {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown list type"})
		return
	}

	tasks, err := s.store.Tasks.ListByList(r.Context(), userID, listType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

type createTaskRequest struct {
	Provider    string     `json:"provider"`
	Email       string     `json:"email"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Title == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.Provider == "" {
		req.Provider = provider.Local
	}

	id := provider.Identity{UserID: userID, Provider: req.Provider, Email: req.Email}
	created, err := s.orchestrator.CreateTask(r.Context(), id, provider.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Due:         req.Due,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

type moveTaskRequest struct {
	ListType string `json:"list_type"`
	Position *int   `json:"position,omitempty"`
}

func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	var req moveTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ListType != store.ListPrioritized && req.ListType != store.ListUnprioritized {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown list type"})
		return
	}

	if err := s.store.Tasks.MoveTask(r.Context(), taskID, req.ListType, req.Position); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.store.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

type reorderTasksRequest struct {
	ListType string   `json:"list_type"`
	TaskIDs  []string `json:"task_ids"`
}

func (s *Server) handleReorderTasks(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	var req reorderTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ListType != store.ListPrioritized && req.ListType != store.ListUnprioritized {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown list type"})
		return
	}

	if err := s.store.Tasks.ReorderList(r.Context(), userID, req.ListType, req.TaskIDs); err != nil {
		s.writeError(w, r, err)
		return
	}

	tasks, err := s.store.Tasks.ListByList(r.Context(), userID, req.ListType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	meetings, err := s.aggregator.ListUserMeetings(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if meetings == nil {
		meetings = []calendar.Meeting{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"meetings": meetings})
}

type scheduleRequest struct {
	Date         string `json:"date,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	SlotMinutes  int    `json:"slot_minutes,omitempty"`
}

func (s *Server) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	// An empty body means defaults for everything
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	tasks, err := s.store.Tasks.ListActiveByList(r.Context(), userID, store.ListPrioritized)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meetings, err := s.aggregator.ListUserMeetings(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prompt := ai.BuildSchedulePrompt(date, tasks, meetings, ai.PromptOptions{
		CustomInstructions: req.Instructions,
		SlotMinutes:        req.SlotMinutes,
	})
	text, err := s.aiManager.GenerateText(r.Context(), prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"schedule": text})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case provider.IsFatalAuth(err):
		status = http.StatusUnauthorized
	case provider.IsDataError(err):
		status = http.StatusBadRequest
	case provider.IsTransient(err):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path), logging.Err(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
