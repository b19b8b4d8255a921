package handlers

import (
	"net/http"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles plan catalog and subscription endpoints.
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
	planService         services.PlanService
}

func NewSubscriptionHandlers(subscriptionService services.SubscriptionService, planService services.PlanService) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptionService: subscriptionService,
		planService:         planService,
	}
}

func (h *SubscriptionHandlers) identity(c echo.Context) (tenantID, actorID uuid.UUID, err error) {
	ctx := c.Request().Context()
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, common.SendUnauthorizedError(c)
	}
	actorID, ok = common.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, common.SendUnauthorizedError(c)
	}
	return tenantID, actorID, nil
}

// ListPlans handles GET /plans
func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	plans, err := h.planService.ListPlans(c.Request().Context())
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plans": plans,
	})
}

// GetCurrent handles GET /subscription. Tenants that never subscribed get
// the free plan with a null subscription.
func (h *SubscriptionHandlers) GetCurrent(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _, err := h.identity(c)
	if err != nil {
		return err
	}

	sub, plan, err := h.subscriptionService.GetCurrent(ctx, tenantID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscription": sub,
		"plan":         plan,
	})
}

// TransitionPlan handles POST /subscription/transition. Paid upgrades do not
// change entitlements here: the service returns ErrPaymentRequired with a
// checkout URL, mapped to 402, and the plan flips only after the payment
// webhook lands.
func (h *SubscriptionHandlers) TransitionPlan(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	var req models.TransitionPlanRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if req.PlanID == uuid.Nil {
		return common.SendValidationError(c, "plan_id", "plan_id is required")
	}

	outcome, err := h.subscriptionService.TransitionPlan(ctx, tenantID, &actorID, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// CancelSubscription handles POST /subscription/cancel
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	sub, err := h.subscriptionService.CancelSubscription(ctx, tenantID, actorID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// ReactivateSubscription handles POST /subscription/reactivate
func (h *SubscriptionHandlers) ReactivateSubscription(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	sub, err := h.subscriptionService.ReactivateSubscription(ctx, tenantID, actorID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// ScheduleDowngrade handles POST /subscription/schedule-downgrade
func (h *SubscriptionHandlers) ScheduleDowngrade(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	var req models.ScheduleDowngradeRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if req.PlanID == uuid.Nil {
		return common.SendValidationError(c, "plan_id", "plan_id is required")
	}

	sub, err := h.subscriptionService.ScheduleDowngrade(ctx, tenantID, actorID, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}
