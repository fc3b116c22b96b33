// Package handlers provides HTTP handlers for the web API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/engine"
	"github.com/alienxp03/tradedebate/internal/export"
	"github.com/alienxp03/tradedebate/provider"
)

const (
	defaultWebMaxTurns = 8
	defaultRunTimeout  = 30 * time.Minute
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine      *engine.Engine
	registry    *provider.Registry
	healthCache *healthCache

	webMaxTurns  int
	runTimeout   time.Duration
	pollInterval time.Duration

	// background tracks runs started by POST /api/runs. Their contexts
	// derive from baseCtx so Close can cancel them.
	background sync.WaitGroup
	baseCtx    context.Context
	stop       context.CancelFunc
}

// Option configures a Handler.
type Option func(*Handler)

// WithWebMaxTurns sets max_turns for runs created without one.
func WithWebMaxTurns(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.webMaxTurns = n
		}
	}
}

// WithHealthCachePath overrides where provider health results are cached.
func WithHealthCachePath(path string) Option {
	return func(h *Handler) {
		h.healthCache = newHealthCache(path, defaultHealthTTL)
	}
}

// WithPollInterval sets how often run streams check for new messages.
func WithPollInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pollInterval = d
		}
	}
}

// New creates a new Handler.
func New(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:       eng,
		registry:     eng.Registry(),
		healthCache:  newHealthCache(defaultHealthCachePath(), defaultHealthTTL),
		webMaxTurns:  defaultWebMaxTurns,
		runTimeout:   defaultRunTimeout,
		pollInterval: time.Second,
	}
	h.baseCtx, h.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns a chi router with middleware and all routes registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", h.handleAPIProviders)
		r.Get("/providers/health", h.handleAPIProvidersHealth)
		r.Get("/providers/health/{name}", h.handleAPIProviderHealth)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.handleAPIRuns)
			r.Post("/", h.handleAPICreateRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleAPIRun)
				r.Delete("/", h.handleAPIDeleteRun)
				r.Get("/stream", h.handleRunStream)
				r.Get("/export/{format}", h.handleExportRun)
			})
		})
	})
}

// Wait blocks until every background run started by this handler returns.
func (h *Handler) Wait() {
	h.background.Wait()
}

// Close cancels background runs and waits for them to record their final
// status. Call it after the HTTP server has shut down and before the
// storage is closed.
func (h *Handler) Close() {
	h.stop()
	h.background.Wait()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// API handlers (JSON)

type providerInfo struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Available    bool     `json:"available"`
	Models       []string `json:"models,omitempty"`
	DefaultModel string   `json:"default_model,omitempty"`
}

func describeProvider(p provider.Provider) providerInfo {
	info := providerInfo{Name: p.Name(), DisplayName: p.Name(), Available: p.Available()}
	if d, ok := p.(interface{ DisplayName() string }); ok {
		info.DisplayName = d.DisplayName()
	}
	if m, ok := p.(interface{ Models() []string }); ok {
		info.Models = m.Models()
	}
	if d, ok := p.(interface{ DefaultModel() string }); ok {
		info.DefaultModel = d.DefaultModel()
	}
	return info
}

func (h *Handler) handleAPIProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.registry.List()
	result := make([]providerInfo, 0, len(providers))

	for _, p := range providers {
		if p.Name() == "mock" {
			continue
		}
		result = append(result, describeProvider(p))
	}

	h.json(w, result)
}

func (h *Handler) handleAPIProvidersHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providers := h.registry.List()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = make(map[string]provider.HealthStatus)
	)
	for _, p := range providers {
		if p.Name() == "mock" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := h.healthCache.Check(ctx, p)
			mu.Lock()
			result[p.Name()] = status
			mu.Unlock()
		}()
	}
	wg.Wait()

	h.json(w, map[string]interface{}{
		"providers": result,
	})
}

func (h *Handler) handleAPIProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := h.registry.Get(name)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	status := h.healthCache.Check(r.Context(), p)
	h.json(w, map[string]interface{}{
		"name":          name,
		"available":     status.Available,
		"response_time": status.ResponseTime.Seconds(),
		"error":         status.Error,
		"checked_at":    status.CheckedAt,
	})
}

func (h *Handler) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	runs, err := h.engine.ListRuns(limit, offset)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*core.RunSummary{}
	}

	h.json(w, runs)
}

func (h *Handler) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, messages, err := h.engine.GetRunWithMessages(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		h.jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	if messages == nil {
		messages = []*core.StoredMessage{}
	}

	h.json(w, map[string]interface{}{
		"run":      run,
		"messages": messages,
	})
}

type createRunRequest struct {
	core.NewRunConfig
	AutoRun *bool `json:"auto_run,omitempty"`
}

func (h *Handler) handleAPICreateRun(w http.ResponseWriter, r *http.Request) {
	if h.baseCtx.Err() != nil {
		h.jsonError(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Topic == "" && req.Ticker == "" {
		h.jsonError(w, "topic or ticker is required", http.StatusBadRequest)
		return
	}
	if req.MaxTurns <= 0 {
		req.MaxTurns = h.webMaxTurns
	}

	run, err := h.engine.CreateRun(r.Context(), req.NewRunConfig)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.AutoRun == nil || *req.AutoRun {
		h.background.Add(1)
		go func() {
			defer h.background.Done()
			ctx, cancel := context.WithTimeout(h.baseCtx, h.runTimeout)
			defer cancel()
			if err := h.engine.RunDebate(ctx, run.ID, nil); err != nil {
				slog.Error("Background run failed", "run_id", run.ID, "error", err)
			}
		}()
	}

	w.Header().Set("Location", "/api/runs/"+run.ID)
	h.jsonStatus(w, run, http.StatusCreated)
}

func (h *Handler) handleAPIDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.engine.GetRun(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		h.jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	if run.Status == core.StatusInProgress {
		h.jsonError(w, "cannot delete a run in progress", http.StatusConflict)
		return
	}

	if err := h.engine.DeleteRun(id); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := export.Format(chi.URLParam(r, "format"))

	exporter, err := export.GetExporter(format)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, messages, err := h.engine.GetRunWithMessages(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		h.jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	filename := export.GenerateFilename(run, exporter.FileExtension())
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")

	if err := exporter.Export(run, messages, w); err != nil {
		slog.Error("Export failed", "run_id", id, "format", format, "error", err)
	}
}

// Helper methods

func (h *Handler) json(w http.ResponseWriter, data interface{}) {
	h.jsonStatus(w, data, http.StatusOK)
}

func (h *Handler) jsonStatus(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
