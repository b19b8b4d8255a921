package handlers

import (
	"net/http"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/labstack/echo/v4"
)

// LimitHandlers exposes plan limit checks for dashboards and pre-flight
// gating in clients. These are advisory reads; enforcement happens at the
// write path.
type LimitHandlers struct {
	limitService services.LimitService
}

func NewLimitHandlers(limitService services.LimitService) *LimitHandlers {
	return &LimitHandlers{
		limitService: limitService,
	}
}

// GetAllLimits handles GET /limits
func (h *LimitHandlers) GetAllLimits(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	statuses, err := h.limitService.CheckAllLimits(ctx, tenantID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"limits": statuses,
	})
}

// GetLimit handles GET /limits/:kind
func (h *LimitHandlers) GetLimit(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	kind := models.ResourceKind(c.Param("kind"))
	status, err := h.limitService.CheckLimit(ctx, tenantID, kind)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
