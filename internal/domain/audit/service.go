package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
	"github.com/r3hc/ovr/internal/platform/metrics"
	"github.com/r3hc/ovr/internal/platform/middleware"
)

// Recorder is the write side of the audit log used by the other domains.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Service struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(repo Repository, logger zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, logger: logger, metrics: m}
}

// Record writes e synchronously, joining the caller's transaction when ctx
// carries one. The structured log line and counter follow the commit.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.Action == "" || e.ResourceType == "" {
		return fmt.Errorf("audit entry requires action and resource type")
	}

	meta := middleware.RequestMetaFromContext(ctx)
	l := &Log{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		IPAddress:    optional(meta.IPAddress),
		UserAgent:    optional(meta.UserAgent),
		RequestID:    optional(meta.RequestID),
	}
	if err := s.repo.Insert(ctx, l); err != nil {
		return fmt.Errorf("write audit log %s: %w", e.Action, err)
	}

	db.AfterCommit(ctx, func() {
		evt := s.logger.Info().
			Str("type", "audit").
			Str("action", e.Action).
			Str("resource_type", e.ResourceType).
			Str("resource_id", e.ResourceID).
			Str("request_id", meta.RequestID).
			Str("ip", meta.IPAddress)
		if e.UserID != nil {
			evt = evt.Str("user_id", e.UserID.String())
		}
		evt.Msg("audit")

		s.metrics.AuditWritten(e.Action)
	})
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// List returns audit entries newest first. Admin only.
func (s *Service) List(ctx context.Context, p *auth.Principal, f Filter, limit, offset int) ([]*Log, int, error) {
	if !p.IsAdmin() {
		return nil, 0, apperr.Forbidden("Admin access required")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperr.Validation("from must be before to")
	}
	return s.repo.List(ctx, f, limit, offset)
}

// DeleteForResource removes every entry about one resource. Used by cascades.
func (s *Service) DeleteForResource(ctx context.Context, resourceType, resourceID string) error {
	n, err := s.repo.DeleteForResource(ctx, resourceType, resourceID)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("resource_type", resourceType).Str("resource_id", resourceID).
		Int64("deleted", n).Msg("audit entries removed")
	return nil
}

// DeleteForUser removes the entries a user authored.
func (s *Service) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	n, err := s.repo.DeleteForUser(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("user_id", userID.String()).Int64("deleted", n).Msg("audit entries removed")
	return nil
}
