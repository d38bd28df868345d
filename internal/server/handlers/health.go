package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/linaform/pkg/api"
)

// healthTimeout ограничение на проверку хранилища
const healthTimeout = 2 * time.Second

// Pinger проверяет доступность зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	store   Pinger
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, store Pinger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		store:   store,
		version: version,
	}
}

// Health обрабатывает GET /api/health
// Health check endpoint для мониторинга, проверяет хранилище
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "storage health check failed", slog.Any("error", err))
		SendJSON(h.logger, w, api.HealthResponse{Status: "unavailable", Version: h.version}, http.StatusServiceUnavailable)
		return
	}

	SendJSON(h.logger, w, api.HealthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}
