package handlers

import (
	"net/http"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/labstack/echo/v4"
)

// EmailHandlers handles campaign quota consumption. Actual delivery is the
// campaign pipeline's job; this endpoint accounts for the recipients against
// the billing period before a dispatch is allowed to start.
type EmailHandlers struct {
	limitService services.LimitService
}

func NewEmailHandlers(limitService services.LimitService) *EmailHandlers {
	return &EmailHandlers{
		limitService: limitService,
	}
}

// ConsumeQuota handles POST /emails/consume
func (h *EmailHandlers) ConsumeQuota(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	actorID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req models.ConsumeEmailQuotaRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if err := common.ValidateRequiredString(req.CampaignRef, "campaign_ref"); err != nil {
		return common.SendValidationError(c, "campaign_ref", err.Error())
	}
	if req.RecipientCount <= 0 {
		return common.SendValidationError(c, "recipient_count", "recipient_count must be positive")
	}

	status, err := h.limitService.ConsumeEmailQuota(ctx, tenantID, &actorID, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
