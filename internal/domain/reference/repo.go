package reference

import "context"

type FacilityRepository interface {
	ListActive(ctx context.Context) ([]*Facility, error)
	GetByID(ctx context.Context, id int) (*Facility, error)
	SetActive(ctx context.Context, id int, active bool) (*Facility, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, f *Facility) error
}

type CategoryRepository interface {
	ListActive(ctx context.Context) ([]*Category, error)
	GetByID(ctx context.Context, id int) (*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, c *Category) error
}
