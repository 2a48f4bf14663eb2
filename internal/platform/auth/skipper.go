package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes bypass authentication, keyed by method then route path.
var publicRoutes = map[string]map[string]bool{
	http.MethodGet: {
		"/health":         true,
		"/health/db":      true,
		"/metrics":        true,
		"/api/facilities": true,
		"/api/categories": true,
	},
	http.MethodPost: {
		"/api/incidents/public": true,
		"/api/auth/register":    true,
		"/api/auth/login":       true,
	},
}

// AuthSkipper reports whether the matched route is public.
func AuthSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

func IsPublicRoute(method, path string) bool {
	if method == http.MethodHead {
		method = http.MethodGet
	}
	return publicRoutes[method][path]
}
