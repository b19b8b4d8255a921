package handlers

import (
	"net/http"
	"strconv"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ShopHandlers handles HTTP requests for storefronts.
type ShopHandlers struct {
	shopService services.ShopService
}

func NewShopHandlers(shopService services.ShopService) *ShopHandlers {
	return &ShopHandlers{
		shopService: shopService,
	}
}

func (h *ShopHandlers) identity(c echo.Context) (tenantID, actorID uuid.UUID, err error) {
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

// ListShops handles GET /shops
func (h *ShopHandlers) ListShops(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _, err := h.identity(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	shops, err := h.shopService.ListShops(ctx, tenantID, limit, offset)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"shops": shops,
		"count": len(shops),
	})
}

// GetShop handles GET /shops/:id
func (h *ShopHandlers) GetShop(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _, err := h.identity(c)
	if err != nil {
		return err
	}

	shopID, err := common.ValidateUUID(c.Param("id"), "shop id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	shop, err := h.shopService.GetShop(ctx, tenantID, shopID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, shop)
}

// CreateShop handles POST /shops
func (h *ShopHandlers) CreateShop(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	var req models.CreateShopRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}
	if err := common.ValidateRequiredString(req.Slug, "slug"); err != nil {
		return common.SendValidationError(c, "slug", err.Error())
	}

	shop, err := h.shopService.CreateShop(ctx, tenantID, actorID, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, shop)
}

// UpdateShop handles PUT /shops/:id
func (h *ShopHandlers) UpdateShop(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _, err := h.identity(c)
	if err != nil {
		return err
	}

	shopID, err := common.ValidateUUID(c.Param("id"), "shop id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req models.UpdateShopRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}

	shop, err := h.shopService.UpdateShop(ctx, tenantID, shopID, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, shop)
}

// DeleteShop handles DELETE /shops/:id
func (h *ShopHandlers) DeleteShop(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	shopID, err := common.ValidateUUID(c.Param("id"), "shop id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.shopService.DeleteShop(ctx, tenantID, actorID, shopID); err != nil {
		return common.SendDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
