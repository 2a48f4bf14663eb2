package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/r3hc/ovr/internal/domain/audit"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
	"github.com/r3hc/ovr/internal/platform/metrics"
	"github.com/r3hc/ovr/internal/platform/validation"
)

// AuditLog is the slice of the audit service identity needs: writing
// entries and purging a deleted user's own entries.
type AuditLog interface {
	audit.Recorder
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// TokenRevoker invalidates the token a principal authenticated with.
type TokenRevoker interface {
	Revoke(ctx context.Context, p *auth.Principal) error
}

type Service struct {
	users   UserRepository
	regs    RegistrationRepository
	tx      db.TxRunner
	audit   AuditLog
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenIssuer
	revoker TokenRevoker
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService wires the identity service. tokens may be nil when only
// identity-provider tokens are accepted, which disables password login.
func NewService(users UserRepository, regs RegistrationRepository, tx db.TxRunner, log AuditLog,
	hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		regs:   regs,
		tx:     tx,
		audit:  log,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// SetRevoker attaches the token revoker used by Logout.
func (s *Service) SetRevoker(r TokenRevoker) {
	s.revoker = r
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func requireAdmin(p *auth.Principal) error {
	if p == nil {
		return apperr.Unauthorized("authentication required")
	}
	if !p.IsAdmin() {
		return apperr.Forbidden("Access denied. Admin privileges required.")
	}
	return nil
}

// -- Registration --

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("User with this email already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if _, err := s.regs.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("Registration request already exists for this email")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	reg := &Registration{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		FacilityID:   in.FacilityID,
		Position:     in.Position,
		PasswordHash: hash,
		Status:       RegistrationPending,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.regs.Create(ctx, reg); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			Action:       audit.ActionRegister,
			ResourceType: audit.ResourceRegistration,
			ResourceID:   strconv.Itoa(reg.ID),
			Details:      map[string]any{"email": reg.Email, "facilityId": reg.FacilityID},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Registration("submitted")
	return reg, nil
}

func (s *Service) ListRegistrations(ctx context.Context, p *auth.Principal, status string) ([]*Registration, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	switch status {
	case "", RegistrationPending, RegistrationApproved, RegistrationRejected:
	default:
		return nil, apperr.Validation("Invalid status %q", status)
	}
	return s.regs.List(ctx, status)
}

// ApproveRegistration creates the user account for a pending registration.
func (s *Service) ApproveRegistration(ctx context.Context, p *auth.Principal, id int) (*User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	var user *User
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		reg, err := s.pendingRegistration(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		reg.Status = RegistrationApproved
		reg.ReviewedAt = &now
		reg.ReviewedByID = &p.UserID
		if err := s.regs.Review(ctx, reg); err != nil {
			return err
		}

		facilityID := reg.FacilityID
		hash := reg.PasswordHash
		user = &User{
			Email:        reg.Email,
			FirstName:    &reg.FirstName,
			LastName:     &reg.LastName,
			Role:         auth.RoleUser,
			FacilityID:   &facilityID,
			Position:     reg.Position,
			IsActive:     true,
			IsApproved:   true,
			PasswordHash: &hash,
			AuthProvider: auth.ProviderLocal,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}

		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionApproveRegistration,
			ResourceType: audit.ResourceRegistration,
			ResourceID:   strconv.Itoa(reg.ID),
			Details:      map[string]any{"email": reg.Email, "createdUserId": user.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Registration("approved")
	return user, nil
}

func (s *Service) RejectRegistration(ctx context.Context, p *auth.Principal, id int, reason string) (*Registration, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	var reg *Registration
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		reg, err = s.pendingRegistration(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		reg.Status = RegistrationRejected
		reg.ReviewedAt = &now
		reg.ReviewedByID = &p.UserID
		reg.RejectionReason = optionalText(reason)
		if err := s.regs.Review(ctx, reg); err != nil {
			return err
		}

		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionRejectRegistration,
			ResourceType: audit.ResourceRegistration,
			ResourceID:   strconv.Itoa(reg.ID),
			Details:      map[string]any{"email": reg.Email, "reason": strings.TrimSpace(reason)},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Registration("rejected")
	return reg, nil
}

func (s *Service) pendingRegistration(ctx context.Context, id int) (*Registration, error) {
	reg, err := s.regs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != RegistrationPending {
		return nil, apperr.Conflict("Registration has already been %s", reg.Status)
	}
	return reg, nil
}

// -- Session --

// Login checks a local password and issues a session token. The order of
// checks decides which message the caller sees.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation("Email and password are required")
	}
	if s.tokens == nil {
		return nil, apperr.Unauthorized("Invalid login method")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		s.metrics.Login("failure")
		return nil, s.unknownUser(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	if user.AuthProvider != auth.ProviderLocal || user.PasswordHash == nil || *user.PasswordHash == "" {
		s.metrics.Login("failure")
		return nil, apperr.Unauthorized("Invalid login method")
	}

	ok, err := s.hasher.Compare(*user.PasswordHash, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.Login("failure")
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	if !user.IsActive {
		s.metrics.Login("inactive")
		return nil, apperr.Forbidden("Your account has been deactivated. Please contact admin.")
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &user.ID,
			Action:       audit.ActionLogin,
			ResourceType: audit.ResourceUser,
			ResourceID:   user.ID.String(),
			Details:      map[string]any{"provider": auth.ProviderLocal},
		})
	})
	if err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	token, claims, err := s.tokens.Issue(user.ID, user.Email, user.Role, user.FacilityID)
	if err != nil {
		return nil, err
	}
	s.metrics.Login("success")
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// unknownUser explains a failed login for an email with no account, which
// is the case for registrations still awaiting or refused review.
func (s *Service) unknownUser(ctx context.Context, email string) error {
	reg, err := s.regs.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Unauthorized("Invalid email or password")
		}
		return err
	}
	switch reg.Status {
	case RegistrationPending:
		return apperr.Forbidden("Your registration is pending approval. Please wait for admin approval.")
	case RegistrationRejected:
		return apperr.Forbidden("Your registration was rejected. Please contact admin for assistance.")
	default:
		return apperr.Unauthorized("Invalid email or password")
	}
}

// Logout revokes the caller's token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, p *auth.Principal) error {
	if p == nil {
		return apperr.Unauthorized("authentication required")
	}
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, p); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}
	return s.audit.Record(ctx, audit.Entry{
		UserID:       &p.UserID,
		Action:       audit.ActionLogout,
		ResourceType: audit.ResourceUser,
		ResourceID:   p.UserID.String(),
	})
}

func (s *Service) Me(ctx context.Context, p *auth.Principal) (*User, error) {
	if p == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	return s.users.GetByID(ctx, p.UserID)
}

// -- Principal resolution --

func principalFor(u *User, provider string) *auth.Principal {
	return &auth.Principal{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		FacilityID: u.FacilityID,
		Provider:   provider,
	}
}

// ResolveLocal loads the user behind a locally issued token.
func (s *Service) ResolveLocal(ctx context.Context, userID uuid.UUID) (*auth.Principal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("User no longer exists")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Forbidden("Your account has been deactivated. Please contact admin.")
	}
	return principalFor(u, auth.ProviderLocal), nil
}

// ResolveExternal maps an identity-provider subject onto a local user. A
// pre-provisioned account is matched by email on first sign-in and linked
// to the subject.
func (s *Service) ResolveExternal(ctx context.Context, subject, email string) (*auth.Principal, error) {
	u, err := s.users.GetByExternalSubject(ctx, subject)
	if errors.Is(err, apperr.ErrNotFound) && email != "" {
		u, err = s.users.GetByEmail(ctx, normalizeEmail(email))
		if err == nil {
			if u.ExternalSubject != nil && *u.ExternalSubject != subject {
				return nil, apperr.Unauthorized("Account is linked to a different identity")
			}
			if err := s.users.LinkExternalSubject(ctx, u.ID, subject); err != nil {
				return nil, err
			}
			u.ExternalSubject = &subject
			s.logger.Info().Str("user_id", u.ID.String()).Msg("linked external identity")
		}
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("No account is provisioned for this identity")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Forbidden("Your account has been deactivated. Please contact admin.")
	}
	return principalFor(u, auth.ProviderOIDC), nil
}

// -- User administration --

func (s *Service) ListUsers(ctx context.Context, p *auth.Principal, limit, offset int) ([]*UserWithStats, int, error) {
	if err := requireAdmin(p); err != nil {
		return nil, 0, err
	}
	return s.users.List(ctx, limit, offset)
}

func (s *Service) GetUser(ctx context.Context, p *auth.Principal, id uuid.UUID) (*User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, p *auth.Principal, id uuid.UUID, in UpdateUserInput) (*User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var u *User
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if in.Role != nil {
			u.Role = *in.Role
			changes["role"] = *in.Role
		}
		if in.FacilityID != nil {
			u.FacilityID = in.FacilityID
			changes["facilityId"] = *in.FacilityID
		}
		if in.Position != nil {
			u.Position = optionalText(*in.Position)
			changes["position"] = *in.Position
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
			changes["isActive"] = *in.IsActive
		}
		if in.FirstName != nil {
			u.FirstName = optionalText(*in.FirstName)
			changes["firstName"] = *in.FirstName
		}
		if in.LastName != nil {
			u.LastName = optionalText(*in.LastName)
			changes["lastName"] = *in.LastName
		}

		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			UserID:       &p.UserID,
			Action:       audit.ActionUpdateUser,
			ResourceType: audit.ResourceUser,
			ResourceID:   id.String(),
			Details:      changes,
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes an account. References from incidents, comments and
// registrations are nulled, and the user's own audit entries go with it.
// The closing audit entry is best effort.
func (s *Service) DeleteUser(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if id == p.UserID {
		return apperr.Conflict("You cannot delete your own account")
	}

	var email string
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		email = u.Email
		if err := s.audit.DeleteForUser(ctx, id); err != nil {
			return err
		}
		if err := s.users.DetachReferences(ctx, id); err != nil {
			return err
		}
		return s.users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	err = s.audit.Record(ctx, audit.Entry{
		UserID:       &p.UserID,
		Action:       audit.ActionDeleteUser,
		ResourceType: audit.ResourceUser,
		ResourceID:   id.String(),
		Details:      map[string]any{"email": email},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", id.String()).Msg("could not write audit entry for user deletion")
	}
	return nil
}

// EnsureAdmin provisions a local admin account unless the email is taken.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string, facilityID *int) (bool, error) {
	email = normalizeEmail(email)
	if err := validation.Var("email", email, "required,email"); err != nil {
		return false, err
	}
	if len(password) < auth.MinPasswordLength {
		return false, apperr.Validation("password must be at least %d characters", auth.MinPasswordLength)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	first, last := "System", "Administrator"
	u := &User{
		Email:        email,
		FirstName:    &first,
		LastName:     &last,
		Role:         auth.RoleAdmin,
		FacilityID:   facilityID,
		IsActive:     true,
		IsApproved:   true,
		PasswordHash: &hash,
		AuthProvider: auth.ProviderLocal,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return false, err
	}
	s.logger.Info().Str("email", email).Msg("admin account provisioned")
	return true, nil
}
