package incident

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/r3hc/ovr/internal/domain/audit"
	"github.com/r3hc/ovr/internal/domain/comment"
	"github.com/r3hc/ovr/internal/domain/reference"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
	"github.com/r3hc/ovr/internal/platform/metrics"
	"github.com/r3hc/ovr/internal/platform/validation"
)

// ReferenceData resolves the facility and legacy category of a submission.
type ReferenceData interface {
	GetFacility(ctx context.Context, id int) (*reference.Facility, error)
	ResolveCategory(ctx context.Context, name string) (*reference.Category, error)
}

// CommentLog is the part of the comment service the workflow writes to.
type CommentLog interface {
	AddSystem(ctx context.Context, incidentID int64, authorID *uuid.UUID, content string) (*comment.Comment, error)
	DeleteByIncident(ctx context.Context, incidentID int64) error
}

type AuditLog interface {
	audit.Recorder
	DeleteForResource(ctx context.Context, resourceType, resourceID string) error
}

type Service struct {
	repo     Repository
	seq      SequenceRepository
	tx       db.TxRunner
	refs     ReferenceData
	comments CommentLog
	audit    AuditLog
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, seq SequenceRepository, tx db.TxRunner, refs ReferenceData,
	comments CommentLog, log AuditLog, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		seq:      seq,
		tx:       tx,
		refs:     refs,
		comments: comments,
		audit:    log,
		logger:   logger.With().Str("component", "incident").Logger(),
		now:      time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func resourceID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Submit files a new report. p is nil for anonymous public submissions.
func (s *Service) Submit(ctx context.Context, p *auth.Principal, in SubmitInput) (*Incident, error) {
	in.clean()
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	facility, err := s.refs.GetFacility(ctx, in.FacilityID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Validation("Facility %d does not exist", in.FacilityID)
	}
	if err != nil {
		return nil, err
	}
	if !facility.IsActive {
		return nil, apperr.Validation("Facility %s is not accepting reports", facility.Code)
	}

	category, err := s.refs.ResolveCategory(ctx, in.Category)
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}

	inc := &Incident{
		FacilityID:             facility.ID,
		CategoryID:             category.ID,
		IncidentDate:           in.IncidentDate,
		IncidentTime:           in.IncidentTime,
		Description:            in.Description,
		ReportingDepartment:    in.ReportingDepartment,
		RespondingDepartment:   in.RespondingDepartment,
		PatientName:            optional(in.PatientName),
		MedicalRecord:          in.MedicalRecord,
		WhatIsBeingReported:    in.WhatIsBeingReported,
		ReporterName:           optional(in.ReporterName),
		ReporterMobile:         optional(in.ReporterMobile),
		ReporterEmail:          optional(in.ReporterEmail),
		ReporterPosition:       optional(in.ReporterPosition),
		ActionTaken:            in.ActionTaken,
		OVRCategory:            in.OVRCategory,
		TypeOfInjury:           in.TypeOfInjury,
		LevelOfHarm:            in.LevelOfHarm,
		LikelihoodCategory:     in.LikelihoodCategory,
		MedicationErrorDetails: optional(in.MedicationErrorDetails),
		Status:                 StatusOpen,
		Priority:               PriorityMedium,
		IsAnonymous:            in.ReporterName == "" && in.ReporterEmail == "",
	}
	if in.ReporterEmail != "" {
		inc.ContactInfo = optional(in.ReporterEmail)
	} else {
		inc.ContactInfo = optional(in.ReporterMobile)
	}

	var actor *uuid.UUID
	if p != nil {
		id := p.UserID
		actor = &id
		inc.ReportedByID = &id
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.now()
		seq, err := s.seq.Next(ctx, Bucket(now))
		if err != nil {
			return err
		}
		inc.OVRID = FormatOVRID(now, seq)
		if err := s.repo.Create(ctx, inc); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       actor,
			Action:       audit.ActionCreateIncident,
			ResourceType: audit.ResourceIncident,
			ResourceID:   resourceID(inc.ID),
			Details: map[string]any{
				"ovrId":      inc.OVRID,
				"facilityId": inc.FacilityID,
				"public":     p == nil,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	inc.Facility = facility
	inc.Category = category
	s.metrics.IncidentSubmitted(p == nil)
	s.logger.Info().Str("ovr_id", inc.OVRID).Int("facility_id", inc.FacilityID).Msg("incident submitted")
	return inc, nil
}

// load fetches an incident and enforces the facility boundary.
func (s *Service) load(ctx context.Context, p *auth.Principal, id int64) (*Incident, error) {
	if p == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccessFacility(inc.FacilityID) {
		return nil, apperr.Forbidden("Access denied to this incident")
	}
	return inc, nil
}

// Authorize checks that p may access the incident. It backs the comment log.
func (s *Service) Authorize(ctx context.Context, p *auth.Principal, incidentID int64) error {
	_, err := s.load(ctx, p, incidentID)
	return err
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id int64) (*Incident, error) {
	return s.load(ctx, p, id)
}

func (s *Service) GetByOVRID(ctx context.Context, p *auth.Principal, ovrID string) (*Incident, error) {
	if p == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	if _, _, err := ParseOVRID(ovrID); err != nil {
		return nil, err
	}
	inc, err := s.repo.GetByOVRID(ctx, ovrID)
	if err != nil {
		return nil, err
	}
	if !p.CanAccessFacility(inc.FacilityID) {
		return nil, apperr.Forbidden("Access denied to this incident")
	}
	return inc, nil
}

// List returns one page of incidents, newest first. Non-admins only ever see
// their own facility whatever the filter says.
func (s *Service) List(ctx context.Context, p *auth.Principal, f Filter, limit, offset int) ([]*Incident, int, error) {
	if p == nil {
		return nil, 0, apperr.Unauthorized("authentication required")
	}
	if f.Status == "all" {
		f.Status = ""
	}
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Validation("Invalid status filter %q", f.Status)
	}
	if err := validation.Var("dateFrom", f.DateFrom, "omitempty,datetime=2006-01-02"); err != nil {
		return nil, 0, err
	}
	if err := validation.Var("dateTo", f.DateTo, "omitempty,datetime=2006-01-02"); err != nil {
		return nil, 0, err
	}
	if !p.IsAdmin() {
		if p.FacilityID == nil {
			return nil, 0, apperr.Forbidden("No facility assigned to this account")
		}
		fid := *p.FacilityID
		f.FacilityID = &fid
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Update applies the generic PATCH. Status changes must follow a patchable
// edge of the workflow; closure has its own operations.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id int64, in UpdateInput) (*Incident, error) {
	inc, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, apperr.Validation("No changes provided")
	}
	if !p.IsAdmin() {
		if in.Priority != nil || in.AssignedToID != nil {
			return nil, apperr.Forbidden("Only admins can change priority or assignment")
		}
		if in.Status != nil && *in.Status == StatusClosed {
			return nil, apperr.Forbidden("Only admins can close incidents")
		}
	}
	if in.Status != nil && *in.Status == StatusPendingClosure {
		return nil, apperr.Conflict("Use the closure request to submit an incident for closure")
	}

	from := inc.Status
	changes := map[string]any{}
	if in.Status != nil && *in.Status != inc.Status {
		action, ok := statusChangeAction(inc.Status, *in.Status)
		if !ok {
			return nil, apperr.Conflict("Cannot change status from %s to %s", inc.Status, *in.Status)
		}
		if AdminOnly(action) && !p.IsAdmin() {
			return nil, apperr.Forbidden("Only admins can reopen closed incidents")
		}
		now := s.now()
		switch action {
		case ActionClose:
			inc.ClosureApprovedBy = &p.UserID
			inc.ClosureApprovedAt = &now
		case ActionReopen, ActionReopenInReview:
			inc.clearClosure()
		}
		inc.Status = TargetStatus(action)
		changes["previousStatus"] = from
		changes["status"] = inc.Status
	}
	if in.Priority != nil && *in.Priority != inc.Priority {
		changes["priority"] = *in.Priority
		inc.Priority = *in.Priority
	}
	if in.IsFlagged != nil && *in.IsFlagged != inc.IsFlagged {
		changes["isFlagged"] = *in.IsFlagged
		inc.IsFlagged = *in.IsFlagged
	}
	if in.AssignedToID != nil {
		changes["assignedToId"] = in.AssignedToID.String()
		assignee := *in.AssignedToID
		inc.AssignedToID = &assignee
	}
	if len(changes) == 0 {
		return inc, nil
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inc, from); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionUpdateIncident,
			ResourceType: audit.ResourceIncident,
			ResourceID:   resourceID(inc.ID),
			Details:      changes,
		})
	})
	if err != nil {
		return nil, err
	}
	if from != inc.Status {
		s.metrics.Transition(from, inc.Status)
	}
	return inc, nil
}

// RequestClosure submits an incident for admin approval to close.
func (s *Service) RequestClosure(ctx context.Context, p *auth.Principal, id int64, reason string) (*Incident, error) {
	inc, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if p.IsAdmin() {
		return nil, apperr.Forbidden("Admins close incidents directly and cannot request closure")
	}
	reason = validation.CleanText(reason)
	if reason == "" {
		return nil, apperr.Validation("Closure reason is required")
	}
	switch inc.Status {
	case StatusClosed:
		return nil, apperr.Conflict("Incident is already closed")
	case StatusPendingClosure:
		return nil, apperr.Conflict("Incident is already pending closure approval")
	}
	if !ValidTransition(ActionRequestClosure, inc.Status) {
		return nil, apperr.Conflict("Cannot request closure of a %s incident", inc.Status)
	}

	from := inc.Status
	now := s.now()
	inc.Status = TargetStatus(ActionRequestClosure)
	inc.ClosureRequestedBy = &p.UserID
	inc.ClosureRequestedAt = &now
	inc.ClosureReason = &reason

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inc, from); err != nil {
			return err
		}
		content := fmt.Sprintf("**Closure Requested**\n\nReason: %s\n\n"+
			"This incident has been submitted for admin approval to close.", reason)
		if _, err := s.comments.AddSystem(ctx, inc.ID, &p.UserID, content); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionRequestClosure,
			ResourceType: audit.ResourceIncident,
			ResourceID:   resourceID(inc.ID),
			Details:      map[string]any{"reason": reason, "status": inc.Status},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(from, inc.Status)
	return inc, nil
}

func orNoReason(s *string) string {
	if s == nil || *s == "" {
		return "No reason provided"
	}
	return *s
}

func uuidString(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// ApproveClosure is the only way an incident reaches closed from
// pending_closure.
func (s *Service) ApproveClosure(ctx context.Context, p *auth.Principal, id int64) (*Incident, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Only admins can approve closures")
	}
	inc, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !ValidTransition(ActionApproveClosure, inc.Status) {
		return nil, apperr.Conflict("Incident is not pending closure")
	}

	now := s.now()
	inc.Status = TargetStatus(ActionApproveClosure)
	inc.ClosureApprovedBy = &p.UserID
	inc.ClosureApprovedAt = &now

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inc, StatusPendingClosure); err != nil {
			return err
		}
		content := fmt.Sprintf("**Closure Approved**\n\nThe closure request has been reviewed and approved. "+
			"This incident is now closed.\n\nOriginal closure reason: %s", orNoReason(inc.ClosureReason))
		if _, err := s.comments.AddSystem(ctx, inc.ID, &p.UserID, content); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionApproveClosure,
			ResourceType: audit.ResourceIncident,
			ResourceID:   resourceID(inc.ID),
			Details: map[string]any{
				"previousStatus": StatusPendingClosure,
				"newStatus":      inc.Status,
				"requestedBy":    uuidString(inc.ClosureRequestedBy),
				"approvedBy":     p.UserID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(StatusPendingClosure, inc.Status)
	return inc, nil
}

// RejectClosure sends a pending incident back to review and clears the
// closure request.
func (s *Service) RejectClosure(ctx context.Context, p *auth.Principal, id int64, reason string) (*Incident, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Only admins can reject closures")
	}
	inc, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	reason = validation.CleanText(reason)
	if reason == "" {
		return nil, apperr.Validation("Rejection reason is required")
	}
	if !ValidTransition(ActionRejectClosure, inc.Status) {
		return nil, apperr.Conflict("Incident is not pending closure")
	}

	requestedBy := inc.ClosureRequestedBy
	originalReason := orNoReason(inc.ClosureReason)
	inc.Status = TargetStatus(ActionRejectClosure)
	inc.clearClosureRequest()

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inc, StatusPendingClosure); err != nil {
			return err
		}
		content := fmt.Sprintf("**Closure Rejected**\n\nReason: %s\n\n"+
			"The closure request has been reviewed and rejected. This incident remains open for further action.\n\n"+
			"Original closure reason: %s", reason, originalReason)
		if _, err := s.comments.AddSystem(ctx, inc.ID, &p.UserID, content); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionRejectClosure,
			ResourceType: audit.ResourceIncident,
			ResourceID:   resourceID(inc.ID),
			Details: map[string]any{
				"reason":      reason,
				"requestedBy": uuidString(requestedBy),
				"rejectedBy":  p.UserID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(StatusPendingClosure, inc.Status)
	return inc, nil
}

// FieldLabel is the human label of an editable field.
func FieldLabel(field string) string {
	switch field {
	case FieldOVRCategory:
		return "Category"
	case FieldWhatIsBeingReported:
		return "Incident Type"
	}
	return field
}

// EditField changes one classification field. Every edit carries a reason
// that is kept as a comment on the incident.
func (s *Service) EditField(ctx context.Context, p *auth.Principal, id int64, field, value, reason string) (*Incident, error) {
	inc, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	reason = validation.CleanText(reason)
	if reason == "" {
		return nil, apperr.Validation("Comment is required when editing incidents")
	}
	value = validation.CleanText(value)
	if field == "" || value == "" {
		return nil, apperr.Validation("Field and value are required")
	}
	switch field {
	case FieldOVRCategory:
		if err := validation.Var("value", value, "max=255"); err != nil {
			return nil, err
		}
	case FieldWhatIsBeingReported:
		if err := validation.Var("value", value,
			"oneof=incident near_miss mandatory_reportable_event sentinel_event"); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Validation("Invalid field for editing")
	}

	var old string
	switch field {
	case FieldOVRCategory:
		old = inc.OVRCategory
		inc.OVRCategory = value
	case FieldWhatIsBeingReported:
		old = inc.WhatIsBeingReported
		inc.WhatIsBeingReported = value
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inc, inc.Status); err != nil {
			return err
		}
		content := fmt.Sprintf("**%s Updated**\n\nChanged from: %s\nChanged to: %s\n\nReason: %s",
			FieldLabel(field), old, value, reason)
		if _, err := s.comments.AddSystem(ctx, inc.ID, &p.UserID, content); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionEditIncident,
			ResourceType: audit.ResourceIncident,
			ResourceID:   resourceID(inc.ID),
			Details: map[string]any{
				"field":    field,
				"oldValue": old,
				"newValue": value,
				"comment":  reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return inc, nil
}

// Delete removes an incident with its comments and audit trail, then records
// the deletion itself.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	if !p.IsAdmin() {
		return apperr.Forbidden("Access denied. Only admins can delete incidents.")
	}
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.comments.DeleteByIncident(ctx, id); err != nil {
			return err
		}
		if err := s.audit.DeleteForResource(ctx, audit.ResourceIncident, resourceID(id)); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionDeleteIncident,
			ResourceType: audit.ResourceIncident,
			ResourceID:   resourceID(id),
			Details: map[string]any{
				"ovrId":      inc.OVRID,
				"facilityId": inc.FacilityID,
				"categoryId": inc.CategoryID,
				"status":     inc.Status,
			},
		})
	})
}

// RecordProof notes that supporting evidence was attached to an incident.
// The file itself is kept outside this service.
func (s *Service) RecordProof(ctx context.Context, p *auth.Principal, id int64) error {
	inc, err := s.load(ctx, p, id)
	if err != nil {
		return err
	}
	return s.audit.Record(ctx, audit.Entry{
		UserID:       &p.UserID,
		Action:       audit.ActionUploadProof,
		ResourceType: audit.ResourceIncident,
		ResourceID:   resourceID(inc.ID),
		Details:      map[string]any{"message": "Proof document uploaded"},
	})
}

// Metrics returns dashboard counters, scoped to the caller's facility for
// non-admins.
func (s *Service) Metrics(ctx context.Context, p *auth.Principal) (*Metrics, error) {
	if p == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	if p.IsAdmin() {
		return s.repo.Metrics(ctx, nil)
	}
	if p.FacilityID == nil {
		return nil, apperr.Forbidden("No facility assigned to this account")
	}
	return s.repo.Metrics(ctx, p.FacilityID)
}
