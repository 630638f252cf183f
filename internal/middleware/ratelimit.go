package middleware

import (
	"github.com/labstack/echo/v4"

	"MarketState/internal/service/ratelimit"
	xhttp "MarketState/pkg/http"
	applogger "MarketState/pkg/logger"
)

// RateLimit rejects requests once the client IP has used up its bucket.
func RateLimit(l *ratelimit.Limiter, log *applogger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil {
				return next(c)
			}
			ip := c.RealIP()
			if l.Allow(ip) {
				return next(c)
			}
			log.Warn("rate limited",
				applogger.String("ip", ip),
				applogger.String("path", c.Path()),
			)
			c.Response().Header().Set("Retry-After", "1")
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Too many requests"))
		}
	}
}
