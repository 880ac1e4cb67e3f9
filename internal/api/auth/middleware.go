package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CustomerContextKey holds the authenticated customer id on the echo context
const CustomerContextKey = "customer_id"

// RequireAuth validates the bearer token and stores its customer id on the context
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := tokenService.ValidateToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(CustomerContextKey, claims.CustomerID)
			return next(c)
		}
	}
}

// CustomerID returns the authenticated customer id
func CustomerID(c echo.Context) (int64, bool) {
	id, ok := c.Get(CustomerContextKey).(int64)
	return id, ok && id > 0
}
