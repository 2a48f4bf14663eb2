package reference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/r3hc/ovr/internal/domain/audit"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
)

// DefaultCategoryName is used when a submission names no legacy category.
const DefaultCategoryName = "general"

type Service struct {
	facilities FacilityRepository
	categories CategoryRepository
	tx         db.TxRunner
	audit      audit.Recorder
	logger     zerolog.Logger
}

func NewService(facilities FacilityRepository, categories CategoryRepository, tx db.TxRunner, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{facilities: facilities, categories: categories, tx: tx, audit: rec, logger: logger}
}

// -- Facility --

func (s *Service) ListFacilities(ctx context.Context) ([]*Facility, error) {
	return s.facilities.ListActive(ctx)
}

func (s *Service) GetFacility(ctx context.Context, id int) (*Facility, error) {
	if id < 1 {
		return nil, apperr.Validation("Invalid facility ID")
	}
	return s.facilities.GetByID(ctx, id)
}

// SetFacilityActive toggles whether a facility is offered for new reports.
func (s *Service) SetFacilityActive(ctx context.Context, p *auth.Principal, id int, active bool) (*Facility, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Admin access required")
	}

	var f *Facility
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		f, err = s.facilities.SetActive(ctx, id, active)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionUpdateFacility,
			ResourceType: audit.ResourceFacility,
			ResourceID:   strconv.Itoa(id),
			Details:      map[string]any{"code": f.Code, "isActive": active},
		})
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// -- Category --

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.categories.ListActive(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int) (*Category, error) {
	if id < 1 {
		return nil, apperr.Validation("Invalid category ID")
	}
	return s.categories.GetByID(ctx, id)
}

func (s *Service) FindCategoryByName(ctx context.Context, name string) (*Category, error) {
	return s.categories.FindByName(ctx, strings.TrimSpace(name))
}

// ResolveCategory maps a submitted legacy category name onto a row. Unknown
// or empty names fall back to the first active category.
func (s *Service) ResolveCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCategoryName
	}
	c, err := s.FindCategoryByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	active, err := s.categories.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("no active categories configured")
	}
	return active[0], nil
}
