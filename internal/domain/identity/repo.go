package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByExternalSubject(ctx context.Context, subject string) (*User, error)
	LinkExternalSubject(ctx context.Context, id uuid.UUID, subject string) error
	List(ctx context.Context, limit, offset int) ([]*UserWithStats, int, error)
	Update(ctx context.Context, u *User) error
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// DetachReferences nulls every foreign key that points at the user so
	// the row can be deleted without cascading into incidents or comments.
	DetachReferences(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type RegistrationRepository interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, id int) (*Registration, error)
	GetByEmail(ctx context.Context, email string) (*Registration, error)
	List(ctx context.Context, status string) ([]*Registration, error)
	// Review records a decision on a pending registration. It returns a
	// conflict when the registration is no longer pending.
	Review(ctx context.Context, r *Registration) error
}
