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

// UserHandlers handles HTTP requests for team members.
type UserHandlers struct {
	userService services.UserService
}

func NewUserHandlers(userService services.UserService) *UserHandlers {
	return &UserHandlers{
		userService: userService,
	}
}

func (h *UserHandlers) identity(c echo.Context) (tenantID, actorID uuid.UUID, err error) {
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

// ListUsers handles GET /users
func (h *UserHandlers) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _, err := h.identity(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	users, err := h.userService.ListUsers(ctx, tenantID, limit, offset)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// GetUser handles GET /users/:id
func (h *UserHandlers) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _, err := h.identity(c)
	if err != nil {
		return err
	}

	userID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	user, err := h.userService.GetUser(ctx, tenantID, userID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// CreateUser handles POST /users
func (h *UserHandlers) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	var req models.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return common.SendValidationError(c, "email", err.Error())
	}
	if len(req.Password) < 8 {
		return common.SendValidationError(c, "password", "password must be at least 8 characters")
	}

	user, err := h.userService.CreateUser(ctx, tenantID, actorID, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// UpdateUser handles PUT /users/:id
func (h *UserHandlers) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _, err := h.identity(c)
	if err != nil {
		return err
	}

	userID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}

	user, err := h.userService.UpdateUser(ctx, tenantID, userID, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// ChangeRole handles PUT /users/:id/role
func (h *UserHandlers) ChangeRole(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	targetID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req models.ChangeRoleRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}

	user, err := h.userService.ChangeRole(ctx, tenantID, actorID, targetID, req.Role)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// DeactivateUser handles POST /users/:id/deactivate
func (h *UserHandlers) DeactivateUser(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	targetID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.userService.DeactivateUser(ctx, tenantID, actorID, targetID); err != nil {
		return common.SendDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ActivateUser handles POST /users/:id/activate
func (h *UserHandlers) ActivateUser(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	targetID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.userService.ActivateUser(ctx, tenantID, actorID, targetID); err != nil {
		return common.SendDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser handles DELETE /users/:id
func (h *UserHandlers) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, actorID, err := h.identity(c)
	if err != nil {
		return err
	}

	targetID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.userService.DeleteUser(ctx, tenantID, actorID, targetID); err != nil {
		return common.SendDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
