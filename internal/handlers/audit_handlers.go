package handlers

import (
	"net/http"
	"strconv"
	"time"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuditHandlers exposes the tenant's audit trail.
type AuditHandlers struct {
	auditService services.AuditService
}

func NewAuditHandlers(auditService services.AuditService) *AuditHandlers {
	return &AuditHandlers{
		auditService: auditService,
	}
}

// ListEvents handles GET /audit-events
func (h *AuditHandlers) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	filters := &models.AuditEventFilters{}

	if v := c.QueryParam("event_kind"); v != "" {
		filters.EventKind = &v
	}
	if v := c.QueryParam("resource_kind"); v != "" {
		filters.ResourceKind = &v
	}
	if v := c.QueryParam("actor_id"); v != "" {
		actorID, err := uuid.Parse(v)
		if err != nil {
			return common.SendValidationError(c, "actor_id", "actor_id is not a valid UUID")
		}
		filters.ActorID = &actorID
	}
	if v := c.QueryParam("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return common.SendValidationError(c, "start_date", "start_date must be RFC3339")
		}
		filters.StartDate = &t
	}
	if v := c.QueryParam("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return common.SendValidationError(c, "end_date", "end_date must be RFC3339")
		}
		filters.EndDate = &t
	}
	filters.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filters.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	events, err := h.auditService.ListEvents(ctx, tenantID, filters)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
