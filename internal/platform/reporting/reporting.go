package reporting

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/validation"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string            `json:"measureId"`
	MeasureName string            `json:"measureName"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Results     []map[string]any  `json:"results"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// scope restricts every measure to the optional facility and incident-date
// window given as $1..$3.
const scope = `($1::int IS NULL OR i.facility_id = $1)
	AND ($2::date IS NULL OR i.incident_date >= $2::date)
	AND ($3::date IS NULL OR i.incident_date <= $3::date)`

var measureParameters = []string{"facilityId", "dateFrom", "dateTo"}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "incidents-by-status",
		Name:        "Incidents by Status",
		Description: "Number of incidents in each workflow status",
		SQL: `SELECT i.status, COUNT(*) AS total FROM incidents i WHERE ` + scope + `
			GROUP BY i.status ORDER BY total DESC`,
		Parameters: measureParameters,
	},
	{
		ID:          "incidents-by-facility",
		Name:        "Incidents by Facility",
		Description: "Incident volume per facility with the number still open",
		SQL: `SELECT f.code, f.name_en AS facility, COUNT(*) AS total,
				COUNT(*) FILTER (WHERE i.status <> 'closed') AS unresolved
			FROM incidents i JOIN facilities f ON f.id = i.facility_id
			WHERE ` + scope + `
			GROUP BY f.code, f.name_en ORDER BY total DESC`,
		Parameters: measureParameters,
	},
	{
		ID:          "incidents-by-harm",
		Name:        "Incidents by Level of Harm",
		Description: "Incident counts grouped by level of harm and likelihood",
		SQL: `SELECT i.level_of_harm, i.likelihood_category, COUNT(*) AS total
			FROM incidents i WHERE ` + scope + `
			GROUP BY i.level_of_harm, i.likelihood_category ORDER BY total DESC`,
		Parameters: measureParameters,
	},
	{
		ID:          "incidents-by-type",
		Name:        "Incidents by Report Type",
		Description: "Incidents, near misses, mandatory reportable and sentinel events",
		SQL: `SELECT i.what_is_being_reported AS report_type, COUNT(*) AS total
			FROM incidents i WHERE ` + scope + `
			GROUP BY i.what_is_being_reported ORDER BY total DESC`,
		Parameters: measureParameters,
	},
	{
		ID:          "monthly-volume",
		Name:        "Monthly Volume",
		Description: "Incidents per month of occurrence",
		SQL: `SELECT to_char(i.incident_date, 'YYYY-MM') AS month, COUNT(*) AS total
			FROM incidents i WHERE ` + scope + `
			GROUP BY month ORDER BY month`,
		Parameters: measureParameters,
	},
	{
		ID:          "closure-turnaround",
		Name:        "Closure Turnaround",
		Description: "Average hours from submission to approved closure, per facility",
		SQL: `SELECT f.code, COUNT(*) AS closed,
				ROUND((AVG(EXTRACT(EPOCH FROM (i.closure_approved_at - i.created_at))) / 3600)::numeric, 1)::float8 AS avg_hours
			FROM incidents i JOIN facilities f ON f.id = i.facility_id
			WHERE i.status = 'closed' AND i.closure_approved_at IS NOT NULL AND ` + scope + `
			GROUP BY f.code ORDER BY avg_hours DESC`,
		Parameters: measureParameters,
	},
}

// ExportRecorder is told about each completed export, typically to audit it.
type ExportRecorder func(ctx context.Context, p *auth.Principal, rows int) error

type Option func(*Handler)

func WithExportRecorder(r ExportRecorder) Option {
	return func(h *Handler) { h.onExport = r }
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool     *pgxpool.Pool
	onExport ExportRecorder
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool, opts ...Option) *Handler {
	h := &Handler{pool: pool}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireAdmin())
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id", h.EvaluateMeasure)
	reportGroup.GET("/incidents.xlsx", h.ExportIncidents)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// Scope is the parsed facility and date window shared by measures and the
// export.
type Scope struct {
	FacilityID *int
	DateFrom   *string
	DateTo     *string
}

func (s Scope) args() []any {
	return []any{s.FacilityID, s.DateFrom, s.DateTo}
}

// ParseScope reads facilityId, dateFrom and dateTo from the query string.
func ParseScope(c echo.Context) (Scope, map[string]string, error) {
	var s Scope
	params := map[string]string{}
	for _, p := range measureParameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}
	if v, ok := params["facilityId"]; ok {
		id, err := strconv.Atoi(v)
		if err != nil || id < 1 {
			return s, nil, apperr.Validation("Invalid facilityId")
		}
		s.FacilityID = &id
	}
	for _, key := range []string{"dateFrom", "dateTo"} {
		v, ok := params[key]
		if !ok {
			continue
		}
		if err := validation.Var(key, v, "datetime=2006-01-02"); err != nil {
			return s, nil, err
		}
		if key == "dateFrom" {
			s.DateFrom = &v
		} else {
			s.DateTo = &v
		}
	}
	return s, params, nil
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return apperr.NotFound("Measure not found")
	}

	sc, params, err := ParseScope(c)
	if err != nil {
		return err
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, sc.args()...)
	if err != nil {
		return fmt.Errorf("evaluate measure %s: %w", measure.ID, err)
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
		Parameters:  params,
	}

	return c.JSON(http.StatusOK, report)
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := h.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]any

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]any, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if results == nil {
		results = []map[string]any{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
