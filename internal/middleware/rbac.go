package middleware

import (
	"net/http"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/labstack/echo/v4"
)

type RBACMiddleware struct {
	rbacService services.RBACService
}

func NewRBACMiddleware(rbacService services.RBACService) *RBACMiddleware {
	return &RBACMiddleware{
		rbacService: rbacService,
	}
}

// RequirePermission gates a route on one permission key. A missing identity
// is a 401; everything else that is not an explicit grant, including unknown
// roles and unknown keys, is a 403.
func (m *RBACMiddleware) RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			role, ok := common.GetRoleFromContext(ctx)
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			if !m.rbacService.HasPermission(role, permission) {
				return c.JSON(http.StatusForbidden, common.CreateErrorResponse(
					models.ReasonForbidden,
					"permission denied",
					map[string]string{"permission": permission},
				))
			}
			return next(c)
		}
	}
}
