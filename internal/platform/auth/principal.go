package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	ProviderLocal = "local"
	ProviderOIDC  = "oidc"
)

// Principal is the acting identity of an authenticated request, resolved once
// per request regardless of which credential source vouched for it.
type Principal struct {
	UserID     uuid.UUID
	Email      string
	Role       string
	FacilityID *int
	Provider   string
	TokenID    string
	ExpiresAt  time.Time
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// CanAccessFacility reports whether p may see data owned by facilityID.
// Admins see every facility; everyone else only their own.
func (p *Principal) CanAccessFacility(facilityID int) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	return p.FacilityID != nil && *p.FacilityID == facilityID
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the request principal or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
