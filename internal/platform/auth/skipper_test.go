package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/health", true},
		{http.MethodHead, "/health", true},
		{http.MethodGet, "/health/db", true},
		{http.MethodGet, "/metrics", true},
		{http.MethodGet, "/api/facilities", true},
		{http.MethodGet, "/api/categories", true},
		{http.MethodPost, "/api/incidents/public", true},
		{http.MethodPost, "/api/auth/register", true},
		{http.MethodPost, "/api/auth/login", true},
		{http.MethodPatch, "/api/facilities/:id", false},
		{http.MethodPost, "/api/auth/logout", false},
		{http.MethodGet, "/api/auth/user", false},
		{http.MethodGet, "/api/incidents", false},
		{http.MethodPost, "/api/incidents", false},
		{http.MethodGet, "/api/auth/login", false},
		{http.MethodGet, "/health/extra", false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetPath(tt.path)

			if got := AuthSkipper(c); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
