package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3hc/ovr/internal/platform/apperr"
)

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	m := New("test")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/incidents/7", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/incidents/:id")

	h := m.Middleware()(func(c echo.Context) error {
		return apperr.NotFound("Incident not found")
	})
	_ = h(c)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", "/api/incidents/:id", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInfl.WithLabelValues("/api/incidents/:id")))
}

func TestMiddleware_SuccessStatus(t *testing.T) {
	m := New("test")
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/incidents", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/incidents")

	h := m.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	require.NoError(t, h(c))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpReqCnt.WithLabelValues("POST", "/api/incidents", "201")))
}

func TestDomainCounters(t *testing.T) {
	m := New("test")
	m.IncidentSubmitted(true)
	m.IncidentSubmitted(false)
	m.IncidentSubmitted(false)
	m.Transition("open", "in_review")
	m.Login("success")
	m.Registration("approved")
	m.AuditWritten("login")
	m.SetPoolStats(1, 2, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.incidentsSubmitted.WithLabelValues("public")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.incidentsSubmitted.WithLabelValues("authenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("open", "in_review")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.dbPool.WithLabelValues("total")))
}

func TestHandler_ExposesNamespace(t *testing.T) {
	m := New("ovr")
	m.Login("failure")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `ovr_logins_total{outcome="failure"} 1`))
}
