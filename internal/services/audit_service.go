package services

import (
	"context"

	"shopsuite/internal/metrics"
	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type AuditService interface {
	// Record appends one event. A failed write never fails the caller: the
	// failure is reported on the technical log channel and the operation
	// that triggered the event proceeds.
	Record(ctx context.Context, event *models.AuditEvent)

	// Query audit events
	ListEvents(ctx context.Context, tenantID uuid.UUID, filters *models.AuditEventFilters) ([]*models.AuditEvent, error)

	// Helper methods for the event shapes the platform emits
	RecordLimitDenied(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, kind models.ResourceKind, current, limit int, planCode string)
	RecordRoleChange(ctx context.Context, tenantID, actorID, targetUserID uuid.UUID, oldRole, newRole models.Role)
	RecordUserLifecycle(ctx context.Context, eventKind string, tenantID, actorID, targetUserID uuid.UUID)
	RecordTransition(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, outcome *models.TransitionOutcome, fromPlanCode string)
}

type auditService struct {
	auditEventRepo repositories.AuditEventRepository
}

func NewAuditService(auditEventRepo repositories.AuditEventRepository) AuditService {
	return &auditService{
		auditEventRepo: auditEventRepo,
	}
}

func (s *auditService) Record(ctx context.Context, event *models.AuditEvent) {
	if event.EventKind == "" {
		log.Error().Str("tenant_id", event.TenantID.String()).Msg("audit event dropped: missing event kind")
		return
	}
	if err := s.auditEventRepo.Create(ctx, event); err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		log.Error().
			Err(err).
			Str("tenant_id", event.TenantID.String()).
			Str("event_kind", event.EventKind).
			Msg("audit write failed")
	}
}

func (s *auditService) ListEvents(ctx context.Context, tenantID uuid.UUID, filters *models.AuditEventFilters) ([]*models.AuditEvent, error) {
	if filters != nil {
		if filters.Limit <= 0 || filters.Limit > 500 {
			filters.Limit = 100
		}
		if filters.Offset < 0 {
			filters.Offset = 0
		}
	}
	return s.auditEventRepo.List(ctx, tenantID, filters)
}

func (s *auditService) RecordLimitDenied(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, kind models.ResourceKind, current, limit int, planCode string) {
	metrics.RecordLimitDenial(string(kind))
	s.Record(ctx, &models.AuditEvent{
		TenantID:     tenantID,
		ActorID:      actorID,
		EventKind:    models.EventLimitDenied,
		ResourceKind: string(kind),
		BeforeCount:  &current,
		AfterCount:   &current,
		PlanCode:     &planCode,
		Metadata:     models.JSONB{"limit": limit},
	})
}

func (s *auditService) RecordRoleChange(ctx context.Context, tenantID, actorID, targetUserID uuid.UUID, oldRole, newRole models.Role) {
	s.Record(ctx, &models.AuditEvent{
		TenantID:     tenantID,
		ActorID:      &actorID,
		EventKind:    models.EventRoleChanged,
		ResourceKind: string(models.ResourceUsers),
		Metadata: models.JSONB{
			"target_user_id": targetUserID.String(),
			"old_role":       string(oldRole),
			"new_role":       string(newRole),
		},
	})
}

func (s *auditService) RecordUserLifecycle(ctx context.Context, eventKind string, tenantID, actorID, targetUserID uuid.UUID) {
	s.Record(ctx, &models.AuditEvent{
		TenantID:     tenantID,
		ActorID:      &actorID,
		EventKind:    eventKind,
		ResourceKind: string(models.ResourceUsers),
		Metadata: models.JSONB{
			"target_user_id": targetUserID.String(),
		},
	})
}

func (s *auditService) RecordTransition(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, outcome *models.TransitionOutcome, fromPlanCode string) {
	metrics.RecordPlanTransition(outcome.Direction)
	s.Record(ctx, &models.AuditEvent{
		TenantID:     tenantID,
		ActorID:      actorID,
		EventKind:    models.EventPlanTransition,
		ResourceKind: "subscription",
		PlanCode:     &outcome.PlanCode,
		Metadata: models.JSONB{
			"from_plan_code":  fromPlanCode,
			"direction":       outcome.Direction,
			"suspended_shops": outcome.SuspendedShops,
			"suspended_users": outcome.SuspendedUsers,
			"restored_shops":  outcome.RestoredShops,
			"restored_users":  outcome.RestoredUsers,
		},
	})
}
