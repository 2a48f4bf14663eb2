package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/r3hc/ovr/internal/platform/apperr"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	if cfg.ServiceName != "ovr-server" {
		t.Errorf("expected default service name ovr-server, got %q", cfg.ServiceName)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected default environment development, got %q", cfg.Environment)
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	rec := withRecorder(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/incidents/42", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/incidents/:id")

	var inner trace.SpanContext
	h := Middleware("ovr-test")(func(c echo.Context) error {
		inner = trace.SpanContextFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP GET /api/incidents/:id" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if !inner.IsValid() {
		t.Error("expected span context on request")
	}
}

func TestMiddleware_ServerErrorMarksSpan(t *testing.T) {
	rec := withRecorder(t)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/incidents", nil), httptest.NewRecorder())
	c.SetPath("/api/incidents")

	h := Middleware("ovr-test")(func(c echo.Context) error {
		return context.DeadlineExceeded
	})
	_ = h(c)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code.String() != "Error" {
		t.Errorf("expected error status, got %v", spans[0].Status().Code)
	}

	// client errors leave the span status unset
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/incidents", nil), httptest.NewRecorder())
	c.SetPath("/api/incidents")
	_ = Middleware("ovr-test")(func(c echo.Context) error { return apperr.NotFound("x") })(c)
	if got := rec.Ended()[1].Status().Code.String(); got != "Unset" {
		t.Errorf("expected unset status for 404, got %s", got)
	}
}
