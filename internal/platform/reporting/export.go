package reporting

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"github.com/r3hc/ovr/internal/platform/auth"
)

const (
	exportSheet   = "Incidents"
	maxExportRows = 10000
)

// ExportRow is one incident line of the spreadsheet export. Patient
// identifiers are left out.
type ExportRow struct {
	OVRID                string
	Facility             string
	Category             string
	IncidentDate         string
	IncidentTime         string
	WhatIsBeingReported  string
	OVRCategory          string
	LevelOfHarm          string
	LikelihoodCategory   string
	Status               string
	Priority             string
	IsFlagged            bool
	IsAnonymous          bool
	ReportingDepartment  string
	RespondingDepartment string
	ClosureReason        *string
	CreatedAt            time.Time
}

var exportHeader = []string{
	"OVR ID", "Facility", "Category", "Incident Date", "Incident Time", "Report Type",
	"OVR Category", "Level of Harm", "Likelihood", "Status", "Priority", "Flagged",
	"Anonymous", "Reporting Department", "Responding Department", "Closure Reason", "Submitted At",
}

var exportWidths = []float64{16, 36, 20, 14, 12, 26, 24, 14, 16, 16, 10, 10, 11, 24, 24, 40, 20}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (r ExportRow) values() []any {
	closure := ""
	if r.ClosureReason != nil {
		closure = *r.ClosureReason
	}
	return []any{
		r.OVRID, r.Facility, r.Category, r.IncidentDate, r.IncidentTime, r.WhatIsBeingReported,
		r.OVRCategory, r.LevelOfHarm, r.LikelihoodCategory, r.Status, r.Priority, yesNo(r.IsFlagged),
		yesNo(r.IsAnonymous), r.ReportingDepartment, r.RespondingDepartment, closure,
		r.CreatedAt.UTC().Format("2006-01-02 15:04"),
	}
}

// BuildWorkbook renders rows as an XLSX workbook with a frozen, styled header.
func BuildWorkbook(rows []ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, w := range exportWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := r.values()
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *Handler) loadExportRows(ctx context.Context, s Scope, status string) ([]ExportRow, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT i.ovr_id, f.name_en, c.name, to_char(i.incident_date, 'YYYY-MM-DD'), i.incident_time,
			i.what_is_being_reported, i.ovr_category, i.level_of_harm, i.likelihood_category,
			i.status, i.priority, i.is_flagged, i.is_anonymous, i.reporting_department,
			i.responding_department, i.closure_reason, i.created_at
		FROM incidents i
		JOIN facilities f ON f.id = i.facility_id
		JOIN categories c ON c.id = i.category_id
		WHERE `+scope+` AND ($4 = '' OR i.status = $4)
		ORDER BY i.created_at DESC
		LIMIT $5`, s.FacilityID, s.DateFrom, s.DateTo, status, maxExportRows)
	if err != nil {
		return nil, fmt.Errorf("query export rows: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.OVRID, &r.Facility, &r.Category, &r.IncidentDate, &r.IncidentTime,
			&r.WhatIsBeingReported, &r.OVRCategory, &r.LevelOfHarm, &r.LikelihoodCategory,
			&r.Status, &r.Priority, &r.IsFlagged, &r.IsAnonymous, &r.ReportingDepartment,
			&r.RespondingDepartment, &r.ClosureReason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportIncidents streams the filtered incident list as an XLSX download.
func (h *Handler) ExportIncidents(c echo.Context) error {
	s, _, err := ParseScope(c)
	if err != nil {
		return err
	}
	status := c.QueryParam("status")
	if status == "all" {
		status = ""
	}

	ctx := c.Request().Context()
	rows, err := h.loadExportRows(ctx, s, status)
	if err != nil {
		return err
	}
	data, err := BuildWorkbook(rows)
	if err != nil {
		return err
	}
	if h.onExport != nil {
		if err := h.onExport(ctx, auth.PrincipalFromContext(ctx), len(rows)); err != nil {
			return err
		}
	}

	name := fmt.Sprintf("ovr-incidents-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", name))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
