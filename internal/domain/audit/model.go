package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded in audit_logs.action.
const (
	ActionCreateIncident      = "create_incident"
	ActionUpdateIncident      = "update_incident"
	ActionEditIncident        = "edit_incident"
	ActionDeleteIncident      = "delete_incident"
	ActionRequestClosure      = "request_closure"
	ActionApproveClosure      = "approve_closure"
	ActionRejectClosure       = "reject_closure"
	ActionUploadProof         = "upload_proof"
	ActionAddComment          = "add_comment"
	ActionRegister            = "register"
	ActionApproveRegistration = "approve_registration"
	ActionRejectRegistration  = "reject_registration"
	ActionLogin               = "login"
	ActionLogout              = "logout"
	ActionUpdateUser          = "update_user"
	ActionDeleteUser          = "delete_user"
	ActionUpdateFacility      = "update_facility"
	ActionExportReport        = "export_report"
)

// Resource types recorded in audit_logs.resource_type.
const (
	ResourceIncident     = "incident"
	ResourceComment      = "comment"
	ResourceUser         = "user"
	ResourceRegistration = "user_registration"
	ResourceFacility     = "facility"
	ResourceReport       = "report"
)

// Entry is what callers hand to Record. Request metadata is filled in from
// the context.
type Entry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

// Log is a stored audit row.
type Log struct {
	ID           int64          `json:"id"`
	UserID       *uuid.UUID     `json:"userId"`
	UserEmail    *string        `json:"userEmail,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    *string        `json:"ipAddress"`
	UserAgent    *string        `json:"userAgent"`
	RequestID    *string        `json:"requestId,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type Filter struct {
	ResourceType string
	ResourceID   string
	UserID       *uuid.UUID
	Action       string
	From         *time.Time
	To           *time.Time
}
