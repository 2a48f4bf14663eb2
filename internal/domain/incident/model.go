package incident

import (
	"time"

	"github.com/google/uuid"

	"github.com/r3hc/ovr/internal/domain/reference"
	"github.com/r3hc/ovr/internal/platform/validation"
)

const (
	StatusOpen           = "open"
	StatusInReview       = "in_review"
	StatusPendingClosure = "pending_closure"
	StatusClosed         = "closed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Values of whatIsBeingReported.
const (
	ReportIncident                 = "incident"
	ReportNearMiss                 = "near_miss"
	ReportMandatoryReportableEvent = "mandatory_reportable_event"
	ReportSentinelEvent            = "sentinel_event"
)

// Fields that EditField can change.
const (
	FieldOVRCategory         = "ovrCategory"
	FieldWhatIsBeingReported = "whatIsBeingReported"
)

// Incident is an occurrence variance report (OVR).
type Incident struct {
	ID                     int64      `json:"id"`
	OVRID                  string     `json:"ovrId"`
	FacilityID             int        `json:"facilityId"`
	CategoryID             int        `json:"categoryId"`
	IncidentDate           string     `json:"incidentDate"`
	IncidentTime           string     `json:"incidentTime"`
	Description            string     `json:"description"`
	ReportingDepartment    string     `json:"reportingDepartment"`
	RespondingDepartment   string     `json:"respondingDepartment"`
	PatientName            *string    `json:"patientName"`
	MedicalRecord          string     `json:"medicalRecord"`
	WhatIsBeingReported    string     `json:"whatIsBeingReported"`
	ReporterName           *string    `json:"reporterName"`
	ReporterMobile         *string    `json:"reporterMobile"`
	ReporterEmail          *string    `json:"reporterEmail"`
	ReporterPosition       *string    `json:"reporterPosition"`
	ActionTaken            string     `json:"actionTaken"`
	OVRCategory            string     `json:"ovrCategory"`
	TypeOfInjury           []string   `json:"typeOfInjury"`
	LevelOfHarm            string     `json:"levelOfHarm"`
	LikelihoodCategory     string     `json:"likelihoodCategory"`
	MedicationErrorDetails *string    `json:"medicationErrorDetails"`
	Status                 string     `json:"status"`
	Priority               string     `json:"priority"`
	IsFlagged              bool       `json:"isFlagged"`
	IsAnonymous            bool       `json:"isAnonymous"`
	ContactInfo            *string    `json:"contactInfo"`
	ReportedByID           *uuid.UUID `json:"reportedById"`
	AssignedToID           *uuid.UUID `json:"assignedToId"`
	ClosureRequestedBy     *uuid.UUID `json:"closureRequestedBy"`
	ClosureRequestedAt     *time.Time `json:"closureRequestedAt"`
	ClosureApprovedBy      *uuid.UUID `json:"closureApprovedBy"`
	ClosureApprovedAt      *time.Time `json:"closureApprovedAt"`
	ClosureReason          *string    `json:"closureReason"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`

	Facility *reference.Facility `json:"facility,omitempty"`
	Category *reference.Category `json:"category,omitempty"`
}

func (i *Incident) clearClosureRequest() {
	i.ClosureRequestedBy = nil
	i.ClosureRequestedAt = nil
	i.ClosureReason = nil
}

func (i *Incident) clearClosure() {
	i.clearClosureRequest()
	i.ClosureApprovedBy = nil
	i.ClosureApprovedAt = nil
}

// SubmitInput is the body of both the public and the authenticated submission.
type SubmitInput struct {
	FacilityID             int      `json:"facilityId" validate:"min=1"`
	Category               string   `json:"category" validate:"max=255"`
	IncidentDate           string   `json:"incidentDate" validate:"required,datetime=2006-01-02"`
	IncidentTime           string   `json:"incidentTime" validate:"required,max=16"`
	ReportingDepartment    string   `json:"reportingDepartment" validate:"required,max=255"`
	RespondingDepartment   string   `json:"respondingDepartment" validate:"required,max=255"`
	PatientName            string   `json:"patientName" validate:"max=255"`
	MedicalRecord          string   `json:"medicalRecord" validate:"required,max=255"`
	WhatIsBeingReported    string   `json:"whatIsBeingReported" validate:"oneof=incident near_miss mandatory_reportable_event sentinel_event"`
	Description            string   `json:"description" validate:"min=10"`
	ReporterName           string   `json:"reporterName" validate:"max=255"`
	ReporterMobile         string   `json:"reporterMobile" validate:"max=64"`
	ReporterEmail          string   `json:"reporterEmail" validate:"omitempty,email,max=255"`
	ReporterPosition       string   `json:"reporterPosition" validate:"max=255"`
	ActionTaken            string   `json:"actionTaken" validate:"min=10"`
	OVRCategory            string   `json:"ovrCategory" validate:"required,max=255"`
	TypeOfInjury           []string `json:"typeOfInjury" validate:"min=1,dive,required"`
	LevelOfHarm            string   `json:"levelOfHarm" validate:"oneof=no_harm low moderate severe death"`
	LikelihoodCategory     string   `json:"likelihoodCategory" validate:"oneof=rare unlikely possible likely almost_certain"`
	MedicationErrorDetails string   `json:"medicationErrorDetails"`
}

// clean trims and strips control characters from every free-text field.
func (in *SubmitInput) clean() {
	for _, f := range []*string{
		&in.Category, &in.IncidentDate, &in.IncidentTime, &in.ReportingDepartment,
		&in.RespondingDepartment, &in.PatientName, &in.MedicalRecord, &in.WhatIsBeingReported,
		&in.Description, &in.ReporterName, &in.ReporterMobile, &in.ReporterEmail,
		&in.ReporterPosition, &in.ActionTaken, &in.OVRCategory, &in.LevelOfHarm,
		&in.LikelihoodCategory, &in.MedicationErrorDetails,
	} {
		*f = validation.CleanText(*f)
	}
	injuries := in.TypeOfInjury[:0]
	for _, t := range in.TypeOfInjury {
		if t = validation.CleanText(t); t != "" {
			injuries = append(injuries, t)
		}
	}
	in.TypeOfInjury = injuries
}

// UpdateInput is the generic PATCH body. Nil fields are left unchanged.
type UpdateInput struct {
	Status       *string    `json:"status" validate:"omitempty,oneof=open in_review pending_closure closed"`
	Priority     *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	IsFlagged    *bool      `json:"isFlagged"`
	AssignedToID *uuid.UUID `json:"assignedToId"`
}

func (in UpdateInput) empty() bool {
	return in.Status == nil && in.Priority == nil && in.IsFlagged == nil && in.AssignedToID == nil
}

type Filter struct {
	Status     string
	FacilityID *int
	CategoryID *int
	DateFrom   string
	DateTo     string
	Flagged    *bool
}

// Metrics summarises incidents visible to the caller.
type Metrics struct {
	Total            int `json:"total"`
	Open             int `json:"open"`
	InReview         int `json:"inReview"`
	PendingClosure   int `json:"pendingClosure"`
	Closed           int `json:"closed"`
	HighPriority     int `json:"highPriority"`
	Flagged          int `json:"flagged"`
	ActiveFacilities int `json:"activeFacilities"`
}
