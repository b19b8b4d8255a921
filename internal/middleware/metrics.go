package middleware

import (
	"strconv"
	"time"

	"shopsuite/internal/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics records request counts and latency per route. The route template is
// used as the path label so parameterized routes do not explode cardinality.
func Metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		duration := time.Since(start).Seconds()
		method := c.Request().Method
		path := c.Path()
		status := strconv.Itoa(c.Response().Status)

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)

		return err
	}
}
