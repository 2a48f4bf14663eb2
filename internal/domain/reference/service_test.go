package reference

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/r3hc/ovr/internal/domain/audit"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
)

// -- Mock Repositories --

type mockFacilityRepo struct {
	items  map[int]*Facility
	nextID int
}

func newMockFacilityRepo() *mockFacilityRepo {
	return &mockFacilityRepo{items: make(map[int]*Facility)}
}

func (m *mockFacilityRepo) ListActive(_ context.Context) ([]*Facility, error) {
	var out []*Facility
	for _, f := range m.items {
		if f.IsActive {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameEn < out[j].NameEn })
	return out, nil
}

func (m *mockFacilityRepo) GetByID(_ context.Context, id int) (*Facility, error) {
	f, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("Facility not found")
	}
	return f, nil
}

func (m *mockFacilityRepo) SetActive(_ context.Context, id int, active bool) (*Facility, error) {
	f, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("Facility not found")
	}
	f.IsActive = active
	return f, nil
}

func (m *mockFacilityRepo) Count(_ context.Context) (int, error) {
	return len(m.items), nil
}

func (m *mockFacilityRepo) Create(_ context.Context, f *Facility) error {
	m.nextID++
	f.ID = m.nextID
	f.CreatedAt = time.Now()
	m.items[f.ID] = f
	return nil
}

type mockCategoryRepo struct {
	items  map[int]*Category
	nextID int
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{items: make(map[int]*Category)}
}

func (m *mockCategoryRepo) ListActive(_ context.Context) ([]*Category, error) {
	var out []*Category
	for _, c := range m.items {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id int) (*Category, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("Category not found")
	}
	return c, nil
}

func (m *mockCategoryRepo) FindByName(_ context.Context, name string) (*Category, error) {
	for _, c := range m.items {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, apperr.NotFound("Category %q not found", name)
}

func (m *mockCategoryRepo) Count(_ context.Context) (int, error) {
	return len(m.items), nil
}

func (m *mockCategoryRepo) Create(_ context.Context, c *Category) error {
	m.nextID++
	c.ID = m.nextID
	m.items[c.ID] = c
	return nil
}

type recorderStub struct {
	entries []audit.Entry
}

func (r *recorderStub) Record(_ context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func newTestService() (*Service, *recorderStub) {
	rec := &recorderStub{}
	svc := NewService(newMockFacilityRepo(), newMockCategoryRepo(), db.NoTx{}, rec, zerolog.Nop())
	return svc, rec
}

func seededService(t *testing.T) (*Service, *recorderStub) {
	t.Helper()
	svc, rec := newTestService()
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc, rec
}

// -- Tests --

func TestSeed_InsertsOnceWhenEmpty(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	res, err := svc.Seed(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Facilities != 14 {
		t.Errorf("expected 14 facilities, got %d", res.Facilities)
	}
	if res.Categories != 7 {
		t.Errorf("expected 7 categories, got %d", res.Categories)
	}

	res, err = svc.Seed(ctx)
	if err != nil {
		t.Fatalf("unexpected error on reseed: %v", err)
	}
	if res.Facilities != 0 || res.Categories != 0 {
		t.Errorf("expected reseed to be a no-op, got %+v", res)
	}
}

func TestListFacilities_OrderedByName(t *testing.T) {
	svc, _ := seededService(t)

	items, err := svc.ListFacilities(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 14 {
		t.Fatalf("expected 14 facilities, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].NameEn > items[i].NameEn {
			t.Errorf("facilities out of order: %s before %s", items[i-1].NameEn, items[i].NameEn)
		}
	}
}

func TestGetFacility_NotFound(t *testing.T) {
	svc, _ := seededService(t)

	_, err := svc.GetFacility(context.Background(), 99)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	_, err = svc.GetFacility(context.Background(), 0)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for id 0, got %v", err)
	}
}

func TestFindCategoryByName_CaseInsensitive(t *testing.T) {
	svc, _ := seededService(t)

	c, err := svc.FindCategoryByName(context.Background(), "  medication error ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Medication Error" {
		t.Errorf("expected Medication Error, got %s", c.Name)
	}
}

func TestResolveCategory_FallsBackToFirstActive(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	c, err := svc.ResolveCategory(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Communication" {
		t.Errorf("expected first active category Communication, got %s", c.Name)
	}

	c, err = svc.ResolveCategory(ctx, "FALLS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Falls" {
		t.Errorf("expected Falls, got %s", c.Name)
	}
}

func TestResolveCategory_NoneConfigured(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ResolveCategory(context.Background(), "general"); err == nil {
		t.Error("expected error with no categories")
	}
}

func TestSetFacilityActive(t *testing.T) {
	svc, rec := seededService(t)
	ctx := context.Background()
	admin := &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}

	f, err := svc.SetFacilityActive(ctx, admin, 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.IsActive {
		t.Error("expected facility to be inactive")
	}
	items, _ := svc.ListFacilities(ctx)
	if len(items) != 13 {
		t.Errorf("expected 13 active facilities, got %d", len(items))
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != audit.ActionUpdateFacility {
		t.Errorf("expected update_facility audit entry, got %+v", rec.entries)
	}
}

func TestSetFacilityActive_RequiresAdmin(t *testing.T) {
	svc, rec := seededService(t)
	fid := 2
	user := &auth.Principal{UserID: uuid.New(), Role: auth.RoleUser, FacilityID: &fid}

	_, err := svc.SetFacilityActive(context.Background(), user, 2, false)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if len(rec.entries) != 0 {
		t.Error("expected no audit entry")
	}
}
