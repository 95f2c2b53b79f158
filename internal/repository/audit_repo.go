package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Record(ctx context.Context, e event.Event) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_events (id, event_type, principal, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Type), e.Principal, e.Detail, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("record auth event: %w", err)
	}
	return nil
}

// Recent returns the newest events first.
func (r *AuditRepository) Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if principal := strings.TrimSpace(query.Principal); principal != "" {
		args = append(args, principal)
		where = append(where, fmt.Sprintf("lower(principal) = lower($%d)", len(args)))
	}
	if eventType := strings.TrimSpace(query.Type); eventType != "" {
		args = append(args, eventType)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	args = append(args, limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT id::text, event_type, principal, detail, occurred_at
		 FROM auth_events %s
		 ORDER BY occurred_at DESC
		 LIMIT $%d`, whereClause, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("query auth events: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Principal, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
