package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/r3hc/ovr/internal/platform/apperr"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		hsts     bool
		wantHSTS string
	}{
		{"production", true, hstsValue},
		{"development", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/incidents", nil), rec)

			err := SecurityHeaders(tt.hsts)(func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
			})(c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, kv := range apiHeaders {
				if got := rec.Header().Get(kv[0]); got != kv[1] {
					t.Errorf("header %s: got %q, want %q", kv[0], got, kv[1])
				}
			}
			if got := rec.Header().Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Errorf("HSTS: got %q, want %q", got, tt.wantHSTS)
			}
		})
	}
}

func TestSecurityHeaders_SetOnError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/api/incidents/7", nil), rec)

	err := SecurityHeaders(true)(func(c echo.Context) error {
		return apperr.Forbidden("Access denied to this incident")
	})(c)

	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected handler error to pass through, got %v", err)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected headers on error responses")
	}
}
