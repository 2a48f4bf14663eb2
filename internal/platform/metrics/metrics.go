// Package metrics exposes Prometheus collectors for HTTP traffic and the
// incident workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r3hc/ovr/internal/platform/apperr"
)

var defaultBuckets = []float64{0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0}

type Metrics struct {
	registry *prometheus.Registry

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	incidentsSubmitted *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	logins             *prometheus.CounterVec
	registrations      *prometheus.CounterVec
	auditWrites        *prometheus.CounterVec
	dbPool             *prometheus.GaugeVec
}

// New builds a registry with process and Go collectors plus the service
// metrics, all under namespace.
func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: r,
		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.", Buckets: defaultBuckets,
		}, []string{"method", "route", "status"}),
		httpInfl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_requests_inflight", Help: "HTTP requests currently being served.",
		}, []string{"route"}),
		incidentsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "incidents_submitted_total", Help: "Incidents submitted by channel.",
		}, []string{"channel"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "incident_transitions_total", Help: "Incident status transitions.",
		}, []string{"from", "to"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logins_total", Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "registrations_total", Help: "Registration requests and decisions.",
		}, []string{"event"}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "audit_writes_total", Help: "Audit entries committed by action.",
		}, []string{"action"}),
		dbPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "db_pool_connections", Help: "Database pool connections by state.",
		}, []string{"state"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur, m.httpInfl)
	r.MustRegister(m.incidentsSubmitted, m.transitions, m.logins, m.registrations, m.auditWrites, m.dbPool)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// IncidentSubmitted counts a new report by channel. It and the other domain
// counters are no-ops on a nil *Metrics.
func (m *Metrics) IncidentSubmitted(public bool) {
	if m == nil {
		return
	}
	channel := "authenticated"
	if public {
		channel = "public"
	}
	m.incidentsSubmitted.WithLabelValues(channel).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registration(event string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(event).Inc()
}

func (m *Metrics) AuditWritten(action string) {
	if m == nil {
		return
	}
	m.auditWrites.WithLabelValues(action).Inc()
}

// SetPoolStats records the pool's acquired, idle and total connections.
func (m *Metrics) SetPoolStats(acquired, idle, total int32) {
	m.dbPool.WithLabelValues("acquired").Set(float64(acquired))
	m.dbPool.WithLabelValues("idle").Set(float64(idle))
	m.dbPool.WithLabelValues("total").Set(float64(total))
}

// Middleware records request count, latency and in-flight gauge per route
// pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpInfl.WithLabelValues(route).Inc()
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = apperr.HTTPStatus(err)
			}
			code := strconv.Itoa(status)
			m.httpReqCnt.WithLabelValues(c.Request().Method, route, code).Inc()
			m.httpDur.WithLabelValues(c.Request().Method, route, code).Observe(time.Since(start).Seconds())
			m.httpInfl.WithLabelValues(route).Dec()
			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
