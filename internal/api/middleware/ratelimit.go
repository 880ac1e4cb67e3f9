// Package middleware holds the tenant-aware echo middleware.
package middleware

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bluewise/internal/api/auth"
)

// TenantLimiter keeps one token bucket per customer
type TenantLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewTenantLimiter allows perSecond requests per customer with the given burst.
// A non-positive rate disables limiting.
func NewTenantLimiter(perSecond float64, burst int) *TenantLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TenantLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow reports whether customerID may make another request now
func (l *TenantLimiter) Allow(customerID int64) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[customerID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[customerID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware rejects requests over the customer's budget with 429. It must run after auth.RequireAuth.
func (l *TenantLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			customerID, ok := auth.CustomerID(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing authentication")
			}
			if !l.Allow(customerID) {
				zerolog.Ctx(c.Request().Context()).Warn().
					Int64("customer_id", customerID).
					Msg("Rate limit exceeded")
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, slow down.")
			}
			return next(c)
		}
	}
}
