package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"contentpipe/internal/infrastructure"
	"contentpipe/internal/pipeline"
	"contentpipe/pkg/contracts"
)

// HealthHandler reports process liveness and store statistics.
type HealthHandler struct {
	store   *pipeline.Store
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates the handler.
func NewHealthHandler(store *pipeline.Store, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		store:   store,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":         "ok",
		"service":        infrastructure.ServiceName,
		"version":        contracts.GetVersionInfo(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"tasks":          h.store.Count(),
	})
}
