package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopsuite/internal/models"

	"github.com/google/uuid"
)

type AuditEventRepository interface {
	// Create appends one event. Events are never updated or deleted.
	Create(ctx context.Context, event *models.AuditEvent) error

	// List audit events with filtering options
	List(ctx context.Context, tenantID uuid.UUID, filters *models.AuditEventFilters) ([]*models.AuditEvent, error)

	// ListUnarchivedBefore returns events older than cutoff for archival.
	ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuditEvent, error)

	// MarkArchived flags exported events so the next archival run skips them.
	MarkArchived(ctx context.Context, ids []uuid.UUID) error
}

type auditEventRepo struct {
	db Querier
}

func NewAuditEventRepo(db Querier) AuditEventRepository {
	return &auditEventRepo{db: db}
}

const auditEventColumns = `id, tenant_id, actor_id, event_kind, resource_kind, before_count, after_count, plan_code, metadata, archived, created_at`

func (r *auditEventRepo) Create(ctx context.Context, event *models.AuditEvent) error {
	event.CreatedAt = time.Now()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	var metadataBytes []byte
	var err error
	if event.Metadata != nil {
		metadataBytes, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (id, tenant_id, actor_id, event_kind, resource_kind, before_count, after_count, plan_code, metadata, archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)
	`
	_, err = r.db.Exec(ctx, query,
		event.ID,
		event.TenantID,
		event.ActorID,
		event.EventKind,
		event.ResourceKind,
		event.BeforeCount,
		event.AfterCount,
		event.PlanCode,
		metadataBytes,
		event.CreatedAt,
	)
	return err
}

func (r *auditEventRepo) List(ctx context.Context, tenantID uuid.UUID, filters *models.AuditEventFilters) ([]*models.AuditEvent, error) {
	if filters == nil {
		filters = &models.AuditEventFilters{}
	}

	query := `
		SELECT ` + auditEventColumns + `
		FROM audit_events
		WHERE tenant_id = $1
	`

	args := []interface{}{tenantID}
	argIdx := 1

	if filters.EventKind != nil {
		argIdx++
		query += fmt.Sprintf(" AND event_kind = $%d", argIdx)
		args = append(args, *filters.EventKind)
	}

	if filters.ResourceKind != nil {
		argIdx++
		query += fmt.Sprintf(" AND resource_kind = $%d", argIdx)
		args = append(args, *filters.ResourceKind)
	}

	if filters.ActorID != nil {
		argIdx++
		query += fmt.Sprintf(" AND actor_id = $%d", argIdx)
		args = append(args, *filters.ActorID)
	}

	if filters.StartDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filters.StartDate)
	}

	if filters.EndDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filters.EndDate)
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		argIdx++
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			argIdx++
			query += fmt.Sprintf(" OFFSET $%d", argIdx)
			args = append(args, filters.Offset)
		}
	}

	return r.queryEvents(ctx, query, args...)
}

func (r *auditEventRepo) ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuditEvent, error) {
	query := `
		SELECT ` + auditEventColumns + `
		FROM audit_events
		WHERE archived = FALSE AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.queryEvents(ctx, query, cutoff, limit)
}

func (r *auditEventRepo) MarkArchived(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_events SET archived = TRUE WHERE id = ANY($1)`
	_, err := r.db.Exec(ctx, query, ids)
	return err
}

func (r *auditEventRepo) queryEvents(ctx context.Context, query string, args ...any) ([]*models.AuditEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		event := &models.AuditEvent{}
		var metadataBytes []byte
		if err := rows.Scan(&event.ID, &event.TenantID, &event.ActorID, &event.EventKind, &event.ResourceKind, &event.BeforeCount, &event.AfterCount, &event.PlanCode, &metadataBytes, &event.Archived, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
