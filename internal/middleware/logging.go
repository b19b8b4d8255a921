package middleware

import (
	"time"

	"shopsuite/internal/common"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RequestLogger emits one structured line per request, attributed to the
// tenant and user when the identity middleware has run. Domain-level audit
// trails are written by the services; this is operator telemetry only.
func RequestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()

		evt := log.Info()
		if res.Status >= 500 {
			evt = log.Error()
		} else if res.Status >= 400 {
			evt = log.Warn()
		}

		evt = evt.
			Str("method", req.Method).
			Str("uri", req.RequestURI).
			Int("status", res.Status).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.RealIP())

		ctx := req.Context()
		if tenantID, ok := common.GetTenantIDFromContext(ctx); ok {
			evt = evt.Str("tenant_id", tenantID.String())
		}
		if userID, ok := common.GetUserIDFromContext(ctx); ok {
			evt = evt.Str("user_id", userID.String())
		}
		if err != nil {
			evt = evt.Err(err)
		}

		evt.Msg("request")
		return err
	}
}
