package handlers

import (
	"net/http"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/labstack/echo/v4"
)

// AuthHandlers handles signup and session endpoints.
type AuthHandlers struct {
	authService   services.AuthService
	tenantService services.TenantService
	userService   services.UserService
}

func NewAuthHandlers(authService services.AuthService, tenantService services.TenantService, userService services.UserService) *AuthHandlers {
	return &AuthHandlers{
		authService:   authService,
		tenantService: tenantService,
		userService:   userService,
	}
}

// SignupResponse bundles the created tenant, its owner and a first session.
type SignupResponse struct {
	Tenant *models.Tenant        `json:"tenant"`
	User   *models.User          `json:"user"`
	Tokens *models.TokenResponse `json:"tokens"`
}

// Signup handles POST /auth/signup
func (h *AuthHandlers) Signup(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.SignupRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}

	if err := common.ValidateRequiredString(req.CompanyName, "company_name"); err != nil {
		return common.SendValidationError(c, "company_name", err.Error())
	}
	if err := common.ValidateSubdomain(req.Subdomain); err != nil {
		return common.SendValidationError(c, "subdomain", err.Error())
	}
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return common.SendValidationError(c, "email", err.Error())
	}
	if len(req.Password) < 8 {
		return common.SendValidationError(c, "password", "password must be at least 8 characters")
	}

	tenant, owner, err := h.tenantService.Signup(ctx, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	tokens, err := h.authService.GenerateTokens(ctx, owner)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, &SignupResponse{
		Tenant: tenant,
		User:   owner,
		Tokens: tokens,
	})
}

// Login handles POST /auth/login
func (h *AuthHandlers) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if req.Email == "" || req.Password == "" {
		return common.SendClientError(c, "email and password are required")
	}

	tokens, err := h.authService.Login(ctx, &req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandlers) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if req.RefreshToken == "" {
		return common.SendValidationError(c, "refresh_token", "refresh_token is required")
	}

	tokens, err := h.authService.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// Logout handles POST /auth/logout
func (h *AuthHandlers) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request format")
	}
	if req.RefreshToken == "" {
		return common.SendValidationError(c, "refresh_token", "refresh_token is required")
	}

	if err := h.authService.Logout(ctx, req.RefreshToken); err != nil {
		return common.SendDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /me
func (h *AuthHandlers) Me(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	user, err := h.userService.GetUser(ctx, tenantID, userID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
