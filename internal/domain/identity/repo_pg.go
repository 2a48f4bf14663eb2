package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/db"
)

// -- User Repository --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const userColumns = `u.id, u.email, u.first_name, u.last_name, u.role, u.facility_id, f.name_en,
	u.position, u.is_active, u.is_approved, u.password_hash, u.auth_provider, u.external_subject,
	u.last_login_at, u.created_at, u.updated_at`

const userFrom = ` FROM users u LEFT JOIN facilities f ON f.id = u.facility_id`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, facility_id, position,
			is_active, is_approved, password_hash, auth_provider, external_subject)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Role, u.FacilityID, u.Position,
		u.IsActive, u.IsApproved, u.PasswordHash, u.AuthProvider, u.ExternalSubject,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("User with this email already exists")
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `u.id = $1`, id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `LOWER(u.email) = LOWER($1)`, email)
}

func (r *userRepoPG) GetByExternalSubject(ctx context.Context, subject string) (*User, error) {
	return r.getOne(ctx, `u.external_subject = $1`, subject)
}

func (r *userRepoPG) getOne(ctx context.Context, cond string, arg any) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+userFrom+` WHERE `+cond, arg))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("User not found")
	}
	return u, err
}

func (r *userRepoPG) LinkExternalSubject(ctx context.Context, id uuid.UUID, subject string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET external_subject = $2, updated_at = NOW() WHERE id = $1`, id, subject)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("External identity is already linked to another user")
	}
	return err
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*UserWithStats, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userColumns+`,
			COALESCE(s.total, 0), COALESCE(s.open, 0)`+userFrom+`
		LEFT JOIN (
			SELECT reported_by_id,
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE status = 'open') AS open
			FROM incidents
			WHERE reported_by_id IS NOT NULL
			GROUP BY reported_by_id
		) s ON s.reported_by_id = u.id
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var items []*UserWithStats
	for rows.Next() {
		var s UserWithStats
		u := &s.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.FacilityID, &u.FacilityName,
			&u.Position, &u.IsActive, &u.IsApproved, &u.PasswordHash, &u.AuthProvider, &u.ExternalSubject,
			&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt, &s.TotalIncidents, &s.OpenIncidents); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET
			first_name = $2, last_name = $3, role = $4, facility_id = $5,
			position = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.Role, u.FacilityID, u.Position, u.IsActive)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (r *userRepoPG) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *userRepoPG) DetachReferences(ctx context.Context, id uuid.UUID) error {
	stmts := []string{
		`UPDATE incidents SET reported_by_id = NULL WHERE reported_by_id = $1`,
		`UPDATE incidents SET assigned_to_id = NULL WHERE assigned_to_id = $1`,
		`UPDATE incidents SET closure_requested_by = NULL WHERE closure_requested_by = $1`,
		`UPDATE incidents SET closure_approved_by = NULL WHERE closure_approved_by = $1`,
		`UPDATE user_registrations SET reviewed_by_id = NULL WHERE reviewed_by_id = $1`,
		`UPDATE comments SET user_id = NULL WHERE user_id = $1`,
	}
	for _, q := range stmts {
		if _, err := r.conn(ctx).Exec(ctx, q, id); err != nil {
			return fmt.Errorf("detach user references: %w", err)
		}
	}
	return nil
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.FacilityID, &u.FacilityName,
		&u.Position, &u.IsActive, &u.IsApproved, &u.PasswordHash, &u.AuthProvider, &u.ExternalSubject,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// -- Registration Repository --

type registrationRepoPG struct {
	pool *pgxpool.Pool
}

func NewRegistrationRepo(pool *pgxpool.Pool) RegistrationRepository {
	return &registrationRepoPG{pool: pool}
}

func (r *registrationRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const registrationColumns = `r.id, r.email, r.first_name, r.last_name, r.facility_id, f.name_en,
	r.position, r.password_hash, r.status, r.requested_at, r.reviewed_at, r.reviewed_by_id,
	r.rejection_reason`

const registrationFrom = ` FROM user_registrations r LEFT JOIN facilities f ON f.id = r.facility_id`

func (r *registrationRepoPG) Create(ctx context.Context, reg *Registration) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_registrations (email, first_name, last_name, facility_id, position,
			password_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, requested_at`,
		reg.Email, reg.FirstName, reg.LastName, reg.FacilityID, reg.Position,
		reg.PasswordHash, reg.Status,
	).Scan(&reg.ID, &reg.RequestedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("Registration request already exists for this email")
	}
	return err
}

func (r *registrationRepoPG) GetByID(ctx context.Context, id int) (*Registration, error) {
	reg, err := scanRegistration(r.conn(ctx).QueryRow(ctx,
		`SELECT `+registrationColumns+registrationFrom+` WHERE r.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Registration not found")
	}
	return reg, err
}

func (r *registrationRepoPG) GetByEmail(ctx context.Context, email string) (*Registration, error) {
	reg, err := scanRegistration(r.conn(ctx).QueryRow(ctx,
		`SELECT `+registrationColumns+registrationFrom+` WHERE LOWER(r.email) = LOWER($1)`, email))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Registration not found")
	}
	return reg, err
}

func (r *registrationRepoPG) List(ctx context.Context, status string) ([]*Registration, error) {
	query := `SELECT ` + registrationColumns + registrationFrom
	var args []any
	if status != "" {
		query += ` WHERE r.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY r.requested_at DESC, r.id DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var items []*Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		items = append(items, reg)
	}
	return items, rows.Err()
}

func (r *registrationRepoPG) Review(ctx context.Context, reg *Registration) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE user_registrations SET
			status = $2, reviewed_at = $3, reviewed_by_id = $4, rejection_reason = $5
		WHERE id = $1 AND status = 'pending'`,
		reg.ID, reg.Status, reg.ReviewedAt, reg.ReviewedByID, reg.RejectionReason)
	if err != nil {
		return fmt.Errorf("review registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("Registration has already been reviewed")
	}
	return nil
}

func scanRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(&reg.ID, &reg.Email, &reg.FirstName, &reg.LastName, &reg.FacilityID, &reg.FacilityName,
		&reg.Position, &reg.PasswordHash, &reg.Status, &reg.RequestedAt, &reg.ReviewedAt, &reg.ReviewedByID,
		&reg.RejectionReason)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
