package reference

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/db"
)

// -- Facility Repository --

type facilityRepoPG struct {
	pool *pgxpool.Pool
}

func NewFacilityRepo(pool *pgxpool.Pool) FacilityRepository {
	return &facilityRepoPG{pool: pool}
}

func (r *facilityRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const facilityColumns = `id, name_en, name_ar, code, is_active, created_at`

func (r *facilityRepoPG) ListActive(ctx context.Context) ([]*Facility, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+facilityColumns+` FROM facilities
		WHERE is_active = TRUE ORDER BY name_en`)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *facilityRepoPG) GetByID(ctx context.Context, id int) (*Facility, error) {
	f, err := scanFacility(r.conn(ctx).QueryRow(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Facility not found")
	}
	return f, err
}

func (r *facilityRepoPG) SetActive(ctx context.Context, id int, active bool) (*Facility, error) {
	f, err := scanFacility(r.conn(ctx).QueryRow(ctx, `UPDATE facilities SET is_active = $2 WHERE id = $1
		RETURNING `+facilityColumns, id, active))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Facility not found")
	}
	return f, err
}

func (r *facilityRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM facilities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count facilities: %w", err)
	}
	return n, nil
}

func (r *facilityRepoPG) Create(ctx context.Context, f *Facility) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO facilities (name_en, name_ar, code, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		f.NameEn, f.NameAr, f.Code, f.IsActive,
	).Scan(&f.ID, &f.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("Facility code %s already exists", f.Code)
	}
	return err
}

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	if err := row.Scan(&f.ID, &f.NameEn, &f.NameAr, &f.Code, &f.IsActive, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// -- Category Repository --

type categoryRepoPG struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepoPG{pool: pool}
}

func (r *categoryRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const categoryColumns = `id, name, description, is_active, created_at`

func (r *categoryRepoPG) ListActive(ctx context.Context) ([]*Category, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+categoryColumns+` FROM categories
		WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var items []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *categoryRepoPG) GetByID(ctx context.Context, id int) (*Category, error) {
	c, err := scanCategory(r.conn(ctx).QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Category not found")
	}
	return c, err
}

func (r *categoryRepoPG) FindByName(ctx context.Context, name string) (*Category, error) {
	c, err := scanCategory(r.conn(ctx).QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories
		WHERE LOWER(name) = LOWER($1)`, name))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Category %q not found", name)
	}
	return c, err
}

func (r *categoryRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (r *categoryRepoPG) Create(ctx context.Context, c *Category) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO categories (name, description, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		c.Name, c.Description, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("Category %s already exists", c.Name)
	}
	return err
}

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
