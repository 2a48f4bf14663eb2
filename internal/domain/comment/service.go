package comment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/r3hc/ovr/internal/domain/audit"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
	"github.com/r3hc/ovr/internal/platform/validation"
)

const maxContentLength = 10000

// IncidentAccess decides whether a principal may see an incident. The
// incident service implements it.
type IncidentAccess interface {
	Authorize(ctx context.Context, p *auth.Principal, incidentID int64) error
}

type Service struct {
	repo   Repository
	tx     db.TxRunner
	audit  audit.Recorder
	access IncidentAccess
}

func NewService(repo Repository, tx db.TxRunner, rec audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, audit: rec}
}

// SetIncidentAccess attaches the access check. It is set after construction
// because the incident service itself depends on this service.
func (s *Service) SetIncidentAccess(a IncidentAccess) {
	s.access = a
}

func (s *Service) authorize(ctx context.Context, p *auth.Principal, incidentID int64) error {
	if p == nil {
		return apperr.Unauthorized("authentication required")
	}
	if s.access == nil {
		return fmt.Errorf("comment service has no incident access check")
	}
	return s.access.Authorize(ctx, p, incidentID)
}

// Add appends a user comment to an incident the caller can access.
func (s *Service) Add(ctx context.Context, p *auth.Principal, incidentID int64, content string) (*Comment, error) {
	content = validation.CleanText(content)
	if content == "" {
		return nil, apperr.Validation("Comment cannot be empty")
	}
	if len(content) > maxContentLength {
		return nil, apperr.Validation("Comment must be at most %d characters", maxContentLength)
	}
	if err := s.authorize(ctx, p, incidentID); err != nil {
		return nil, err
	}

	c := &Comment{IncidentID: incidentID, UserID: &p.UserID, Content: content}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionAddComment,
			ResourceType: audit.ResourceIncident,
			ResourceID:   strconv.FormatInt(incidentID, 10),
			Details:      map[string]any{"commentId": c.ID, "comment": content},
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddSystem appends a workflow-generated entry. It joins the caller's
// transaction and performs no access check of its own.
func (s *Service) AddSystem(ctx context.Context, incidentID int64, authorID *uuid.UUID, content string) (*Comment, error) {
	c := &Comment{IncidentID: incidentID, UserID: authorID, Content: content}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create system comment: %w", err)
	}
	return c, nil
}

// List returns an incident's comments oldest first.
func (s *Service) List(ctx context.Context, p *auth.Principal, incidentID int64) ([]*Comment, error) {
	if err := s.authorize(ctx, p, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListByIncident(ctx, incidentID)
}

// DeleteByIncident is part of the incident delete cascade.
func (s *Service) DeleteByIncident(ctx context.Context, incidentID int64) error {
	_, err := s.repo.DeleteByIncident(ctx, incidentID)
	return err
}
