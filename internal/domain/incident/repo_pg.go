package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r3hc/ovr/internal/domain/reference"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/db"
)

// -- Incident Repository --

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const incidentColumns = `i.id, i.ovr_id, i.facility_id, i.category_id,
	to_char(i.incident_date, 'YYYY-MM-DD'), i.incident_time, i.description,
	i.reporting_department, i.responding_department, i.patient_name, i.medical_record,
	i.what_is_being_reported, i.reporter_name, i.reporter_mobile, i.reporter_email,
	i.reporter_position, i.action_taken, i.ovr_category, i.type_of_injury, i.level_of_harm,
	i.likelihood_category, i.medication_error_details, i.status, i.priority, i.is_flagged,
	i.is_anonymous, i.contact_info, i.reported_by_id, i.assigned_to_id,
	i.closure_requested_by, i.closure_requested_at, i.closure_approved_by,
	i.closure_approved_at, i.closure_reason, i.created_at, i.updated_at,
	f.id, f.name_en, f.name_ar, f.code, f.is_active, f.created_at,
	c.id, c.name, c.description, c.is_active, c.created_at`

const incidentFrom = ` FROM incidents i
	JOIN facilities f ON f.id = i.facility_id
	JOIN categories c ON c.id = i.category_id`

func (r *repoPG) Create(ctx context.Context, inc *Incident) error {
	injuries, err := json.Marshal(inc.TypeOfInjury)
	if err != nil {
		return fmt.Errorf("encode type of injury: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO incidents (ovr_id, facility_id, category_id, incident_date, incident_time,
			description, reporting_department, responding_department, patient_name,
			medical_record, what_is_being_reported, reporter_name, reporter_mobile,
			reporter_email, reporter_position, action_taken, ovr_category, type_of_injury,
			level_of_harm, likelihood_category, medication_error_details, status, priority,
			is_flagged, is_anonymous, contact_info, reported_by_id)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING id, created_at, updated_at`,
		inc.OVRID, inc.FacilityID, inc.CategoryID, inc.IncidentDate, inc.IncidentTime,
		inc.Description, inc.ReportingDepartment, inc.RespondingDepartment, inc.PatientName,
		inc.MedicalRecord, inc.WhatIsBeingReported, inc.ReporterName, inc.ReporterMobile,
		inc.ReporterEmail, inc.ReporterPosition, inc.ActionTaken, inc.OVRCategory, injuries,
		inc.LevelOfHarm, inc.LikelihoodCategory, inc.MedicationErrorDetails, inc.Status, inc.Priority,
		inc.IsFlagged, inc.IsAnonymous, inc.ContactInfo, inc.ReportedByID,
	).Scan(&inc.ID, &inc.CreatedAt, &inc.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("OVR ID %s already exists", inc.OVRID)
	}
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Incident, error) {
	inc, err := scanIncident(r.conn(ctx).QueryRow(ctx, `SELECT `+incidentColumns+incidentFrom+` WHERE i.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Incident not found")
	}
	return inc, err
}

func (r *repoPG) GetByOVRID(ctx context.Context, ovrID string) (*Incident, error) {
	inc, err := scanIncident(r.conn(ctx).QueryRow(ctx, `SELECT `+incidentColumns+incidentFrom+` WHERE i.ovr_id = $1`, ovrID))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Incident not found")
	}
	return inc, err
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Incident, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM incidents i`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY i.created_at DESC, i.id DESC LIMIT $%d OFFSET $%d`,
		incidentColumns, incidentFrom, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var items []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inc)
	}
	return items, total, rows.Err()
}

func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("i.status = $%d", f.Status)
	}
	if f.FacilityID != nil {
		add("i.facility_id = $%d", *f.FacilityID)
	}
	if f.CategoryID != nil {
		add("i.category_id = $%d", *f.CategoryID)
	}
	if f.DateFrom != "" {
		add("i.incident_date >= $%d::date", f.DateFrom)
	}
	if f.DateTo != "" {
		add("i.incident_date <= $%d::date", f.DateTo)
	}
	if f.Flagged != nil {
		add("i.is_flagged = $%d", *f.Flagged)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) Update(ctx context.Context, inc *Incident, fromStatus string) error {
	conn := r.conn(ctx)
	err := conn.QueryRow(ctx, `
		UPDATE incidents SET
			what_is_being_reported = $2, ovr_category = $3, status = $4, priority = $5,
			is_flagged = $6, assigned_to_id = $7, closure_requested_by = $8,
			closure_requested_at = $9, closure_approved_by = $10, closure_approved_at = $11,
			closure_reason = $12, updated_at = NOW()
		WHERE id = $1 AND status = $13
		RETURNING updated_at`,
		inc.ID, inc.WhatIsBeingReported, inc.OVRCategory, inc.Status, inc.Priority,
		inc.IsFlagged, inc.AssignedToID, inc.ClosureRequestedBy,
		inc.ClosureRequestedAt, inc.ClosureApprovedBy, inc.ClosureApprovedAt,
		inc.ClosureReason, fromStatus,
	).Scan(&inc.UpdatedAt)
	if db.IsNoRows(err) {
		var exists bool
		if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, inc.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check incident %d: %w", inc.ID, err)
		}
		if !exists {
			return apperr.NotFound("Incident not found")
		}
		return apperr.Conflict("Incident was changed by another request, reload and try again")
	}
	if err != nil {
		return fmt.Errorf("update incident %d: %w", inc.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Incident not found")
	}
	return nil
}

func (r *repoPG) Metrics(ctx context.Context, facilityID *int) (*Metrics, error) {
	var m Metrics
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE status = 'in_review'),
			COUNT(*) FILTER (WHERE status = 'pending_closure'),
			COUNT(*) FILTER (WHERE status = 'closed'),
			COUNT(*) FILTER (WHERE priority = 'high'),
			COUNT(*) FILTER (WHERE is_flagged)
		FROM incidents
		WHERE $1::int IS NULL OR facility_id = $1`, facilityID,
	).Scan(&m.Total, &m.Open, &m.InReview, &m.PendingClosure, &m.Closed, &m.HighPriority, &m.Flagged)
	if err != nil {
		return nil, fmt.Errorf("incident metrics: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM facilities
		WHERE is_active = TRUE AND ($1::int IS NULL OR id = $1)`, facilityID,
	).Scan(&m.ActiveFacilities)
	if err != nil {
		return nil, fmt.Errorf("count active facilities: %w", err)
	}
	return &m, nil
}

func scanIncident(row pgx.Row) (*Incident, error) {
	var (
		inc      Incident
		f        reference.Facility
		c        reference.Category
		injuries []byte
	)
	err := row.Scan(&inc.ID, &inc.OVRID, &inc.FacilityID, &inc.CategoryID,
		&inc.IncidentDate, &inc.IncidentTime, &inc.Description,
		&inc.ReportingDepartment, &inc.RespondingDepartment, &inc.PatientName, &inc.MedicalRecord,
		&inc.WhatIsBeingReported, &inc.ReporterName, &inc.ReporterMobile, &inc.ReporterEmail,
		&inc.ReporterPosition, &inc.ActionTaken, &inc.OVRCategory, &injuries, &inc.LevelOfHarm,
		&inc.LikelihoodCategory, &inc.MedicationErrorDetails, &inc.Status, &inc.Priority, &inc.IsFlagged,
		&inc.IsAnonymous, &inc.ContactInfo, &inc.ReportedByID, &inc.AssignedToID,
		&inc.ClosureRequestedBy, &inc.ClosureRequestedAt, &inc.ClosureApprovedBy,
		&inc.ClosureApprovedAt, &inc.ClosureReason, &inc.CreatedAt, &inc.UpdatedAt,
		&f.ID, &f.NameEn, &f.NameAr, &f.Code, &f.IsActive, &f.CreatedAt,
		&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(injuries) > 0 {
		if err := json.Unmarshal(injuries, &inc.TypeOfInjury); err != nil {
			return nil, fmt.Errorf("decode type of injury: %w", err)
		}
	}
	inc.Facility = &f
	inc.Category = &c
	return &inc, nil
}

// -- Sequence Repository --

type sequenceRepoPG struct {
	pool *pgxpool.Pool
}

func NewSequenceRepo(pool *pgxpool.Pool) SequenceRepository {
	return &sequenceRepoPG{pool: pool}
}

// Next atomically increments and returns the bucket's counter. Called inside
// the submission transaction, a rollback returns the number.
func (r *sequenceRepoPG) Next(ctx context.Context, bucket string) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ovr_sequences (bucket, last_value) VALUES ($1, 1)
		ON CONFLICT (bucket) DO UPDATE SET last_value = ovr_sequences.last_value + 1
		RETURNING last_value`, bucket).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next ovr sequence for %s: %w", bucket, err)
	}
	return n, nil
}
