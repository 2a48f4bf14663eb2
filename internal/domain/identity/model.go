package identity

import (
	"time"

	"github.com/google/uuid"
)

const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// User is an account that may sign in. PasswordHash is only set for local
// accounts and is never serialized.
type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	FirstName       *string    `json:"firstName"`
	LastName        *string    `json:"lastName"`
	Role            string     `json:"role"`
	FacilityID      *int       `json:"facilityId"`
	FacilityName    *string    `json:"facilityName,omitempty"`
	Position        *string    `json:"position"`
	IsActive        bool       `json:"isActive"`
	IsApproved      bool       `json:"isApproved"`
	PasswordHash    *string    `json:"-"`
	AuthProvider    string     `json:"authProvider"`
	ExternalSubject *string    `json:"-"`
	LastLoginAt     *time.Time `json:"lastLoginAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// UserWithStats is a user row on the admin list, with the number of
// incidents they reported.
type UserWithStats struct {
	User
	TotalIncidents int `json:"totalIncidents"`
	OpenIncidents  int `json:"openIncidents"`
}

type Registration struct {
	ID              int        `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	FacilityID      int        `json:"facilityId"`
	FacilityName    *string    `json:"facilityName,omitempty"`
	Position        *string    `json:"position"`
	PasswordHash    string     `json:"-"`
	Status          string     `json:"status"`
	RequestedAt     time.Time  `json:"requestedAt"`
	ReviewedAt      *time.Time `json:"reviewedAt"`
	ReviewedByID    *uuid.UUID `json:"reviewedById"`
	RejectionReason *string    `json:"rejectionReason"`
}

type RegisterInput struct {
	Email      string  `json:"email" validate:"required,email,max=255"`
	FirstName  string  `json:"firstName" validate:"required,max=255"`
	LastName   string  `json:"lastName" validate:"required,max=255"`
	FacilityID int     `json:"facilityId" validate:"required,min=1"`
	Position   *string `json:"position" validate:"omitempty,max=255"`
	Password   string  `json:"password" validate:"required,min=8"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserInput carries the admin-editable fields. Nil means unchanged.
type UpdateUserInput struct {
	Role       *string `json:"role" validate:"omitempty,oneof=admin user"`
	FacilityID *int    `json:"facilityId" validate:"omitempty,min=1"`
	Position   *string `json:"position" validate:"omitempty,max=255"`
	IsActive   *bool   `json:"isActive"`
	FirstName  *string `json:"firstName" validate:"omitempty,max=255"`
	LastName   *string `json:"lastName" validate:"omitempty,max=255"`
}

// Session is the result of a successful local login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}
