package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/achievement-engine/internal/domain"
	"github.com/achievement-engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readyTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Handler provides HTTP handlers for the achievement API
type Handler struct {
	service  *service.ScoreService
	checks   map[string]ReadinessCheck
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler.
// checks are run by /ready; gatherer backs /metrics.
func NewHandler(service *service.ScoreService, checks map[string]ReadinessCheck, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		checks:   checks,
		gatherer: gatherer,
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Score operations
		r.Post("/scores", h.SubmitScore)
		r.Post("/scores/batch", h.SubmitScoreBatch)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Delete("/", h.PurgeSessions)
			r.Get("/{sessionID}", h.GetSession)
			r.Delete("/{sessionID}", h.DeleteSession)
		})

		r.Route("/achievements", func(r chi.Router) {
			r.Get("/", h.ListAchievements)
			r.Get("/{achievementID}", h.GetAchievement)
		})

		r.Get("/accounts/{accountID}/achievements", h.ListAccountAchievements)

		r.Route("/beatmaps", func(r chi.Router) {
			r.Post("/", h.CreateBeatmap)
			r.Get("/", h.ListBeatmaps)
			r.Get("/lookup", h.LookupBeatmap)
			r.Get("/{beatmapID}", h.GetBeatmap)
			r.Patch("/{beatmapID}", h.UpdateBeatmap)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// errorStatus maps a service error to its HTTP status and the error shown to the client
func errorStatus(err error) (int, error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, domain.ErrInvalidRequest
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, domain.ErrInvalidInput
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, domain.ErrSessionNotFound
	case errors.Is(err, domain.ErrBeatmapNotFound):
		return http.StatusNotFound, domain.ErrBeatmapNotFound
	case errors.Is(err, domain.ErrAchievementNotFound):
		return http.StatusNotFound, domain.ErrAchievementNotFound
	case errors.Is(err, domain.ErrBeatmapExists):
		return http.StatusConflict, domain.ErrBeatmapExists
	case errors.Is(err, domain.ErrStoreTimeout):
		return http.StatusGatewayTimeout, domain.ErrStoreTimeout
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, domain.ErrStoreUnavailable
	default:
		return http.StatusInternalServerError, domain.ErrInternalError
	}
}

// writeServiceError logs server-side failures and writes the mapped error response
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	status, public := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "error", err)
	}
	h.writeError(w, status, public)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready only when every dependency check passes
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    failed,
			Error:   "not ready",
		})
		return
	}

	h.writeSuccess(w, map[string]string{"status": "ready"})
}
