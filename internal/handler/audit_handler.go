package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"artist-catalog-api/internal/model"
)

type auditReader interface {
	Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error)
}

type AuditHandler struct {
	service auditReader
}

func NewAuditHandler(service auditReader) *AuditHandler {
	return &AuditHandler{service: service}
}

// List returns recent authentication events, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	items, err := h.service.Recent(r.Context(), model.AuditQuery{
		Principal: strings.TrimSpace(query.Get("principal")),
		Type:      strings.TrimSpace(query.Get("type")),
		Limit:     parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items})
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
