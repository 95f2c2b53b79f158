package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/model"
)

type auditStore interface {
	Record(ctx context.Context, e event.Event) error
	Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error)
}

// AuditService persists authentication events off the request path and
// serves them back to administrators.
type AuditService struct {
	store        auditStore
	writeTimeout time.Duration
}

func NewAuditService(store auditStore) *AuditService {
	return &AuditService{store: store, writeTimeout: 3 * time.Second}
}

// Run drains events until ctx is cancelled or the channel closes. A failed
// write is logged and skipped.
func (s *AuditService) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(ctx, e)
		}
	}
}

func (s *AuditService) record(ctx context.Context, e event.Event) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.store.Record(writeCtx, e); err != nil {
		slog.Error("failed to record auth event", "type", e.Type, "principal", e.Principal, "error", err)
	}
}

func (s *AuditService) Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	query.Principal = strings.TrimSpace(query.Principal)
	query.Type = strings.TrimSpace(query.Type)
	return s.store.Recent(ctx, query)
}
