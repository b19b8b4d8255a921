package handlers

import (
	"net/http"

	"shopsuite/internal/common"
	"shopsuite/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers handles the authenticated tenant's own record. There is no
// cross-tenant listing surface; a session is always scoped to one tenant.
type TenantHandlers struct {
	tenantService services.TenantService
}

func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{
		tenantService: tenantService,
	}
}

// GetTenant handles GET /tenant
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	tenant, err := h.tenantService.GetByID(ctx, tenantID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateTenant handles PUT /tenant
func (h *TenantHandlers) UpdateTenant(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req services.UpdateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}
	req.ID = tenantID

	tenant, err := h.tenantService.Update(ctx, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}
