package middleware

import (
	"context"

	"shopsuite/internal/common"
	"shopsuite/internal/models"
	"shopsuite/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTMiddleware validates bearer tokens and loads the caller's identity into
// the request context. The role rides in the token, so permission checks
// downstream never hit the database; a stale role lives at most one access
// token TTL.
func JWTMiddleware(jwtSecret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(jwtSecret),
		SigningMethod: "HS256",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(services.TokenClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*services.TokenClaims)
			if !ok {
				return
			}
			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				return
			}
			tenantID, err := uuid.Parse(claims.TenantID)
			if err != nil {
				return
			}
			// A malformed claim leaves the context empty and the
			// permission gate denies from there.
			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, userID)
			ctx = context.WithValue(ctx, common.TenantIDKey, tenantID)
			ctx = context.WithValue(ctx, common.RoleKey, models.Role(claims.Role))
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c)
		},
	})
}
