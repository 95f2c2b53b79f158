package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"artist-catalog-api/internal/model"
)

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db      pinger
	timeout time.Duration
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// Health reports UP when the user directory database answers a ping.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := model.HealthStatus{
		Status:    "UP",
		Database:  "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.db == nil {
		status.Database = "UNKNOWN"
	} else if err := h.db.Health(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		status.Status = "DOWN"
		status.Database = "DOWN"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
