package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/r3hc/ovr/internal/platform/apperr"
)

// PrincipalResolver maps verified token subjects onto local user rows.
// Implementations must reject inactive users.
type PrincipalResolver interface {
	ResolveLocal(ctx context.Context, userID uuid.UUID) (*Principal, error)
	ResolveExternal(ctx context.Context, subject, email string) (*Principal, error)
}

// TokenVerifier validates identity-provider tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*ExternalClaims, error)
}

// Authenticator turns a bearer token into a Principal. Local tokens are
// tried first when a TokenIssuer is configured, then the external verifier.
type Authenticator struct {
	local       *TokenIssuer
	external    TokenVerifier
	revocations RevocationStore
	users       PrincipalResolver
	logger      zerolog.Logger
}

type AuthenticatorOption func(*Authenticator)

func WithLocalTokens(issuer *TokenIssuer) AuthenticatorOption {
	return func(a *Authenticator) { a.local = issuer }
}

func WithExternalTokens(v TokenVerifier) AuthenticatorOption {
	return func(a *Authenticator) { a.external = v }
}

func WithRevocations(store RevocationStore) AuthenticatorOption {
	return func(a *Authenticator) { a.revocations = store }
}

func NewAuthenticator(users PrincipalResolver, logger zerolog.Logger, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{users: users, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate verifies the raw bearer token and resolves its principal.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if a.local != nil {
		claims, err := a.local.Parse(token)
		switch {
		case err == nil:
			return a.fromLocal(ctx, claims)
		case errors.Is(err, ErrExpiredToken):
			return nil, apperr.Unauthorized("token has expired")
		}
	}

	if a.external != nil {
		claims, err := a.external.Verify(ctx, token)
		if err == nil {
			return a.fromExternal(ctx, claims)
		}
		if !errors.Is(err, ErrInvalidToken) {
			a.logger.Warn().Err(err).Msg("external token verification failed")
		}
	}

	return nil, apperr.Unauthorized("invalid or expired token")
}

func (a *Authenticator) fromLocal(ctx context.Context, claims *LocalClaims) (*Principal, error) {
	if err := a.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token subject")
	}
	p, err := a.users.ResolveLocal(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.TokenID = claims.ID
	p.ExpiresAt = claims.ExpiresAt.Time
	return p, nil
}

func (a *Authenticator) fromExternal(ctx context.Context, claims *ExternalClaims) (*Principal, error) {
	if claims.ID != "" {
		if err := a.checkRevoked(ctx, claims.ID); err != nil {
			return nil, err
		}
	}
	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}
	p, err := a.users.ResolveExternal(ctx, claims.Subject, email)
	if err != nil {
		return nil, err
	}
	p.TokenID = claims.ID
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

func (a *Authenticator) checkRevoked(ctx context.Context, jti string) error {
	if a.revocations == nil {
		return nil
	}
	revoked, err := a.revocations.IsRevoked(ctx, jti)
	if err != nil {
		return fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return apperr.Unauthorized("token has been revoked")
	}
	return nil
}

// Revoke invalidates the principal's token until it would have expired.
func (a *Authenticator) Revoke(ctx context.Context, p *Principal) error {
	if a.revocations == nil || p == nil || p.TokenID == "" {
		return nil
	}
	expires := p.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(24 * time.Hour)
	}
	return a.revocations.Revoke(ctx, p.TokenID, p.UserID.String(), expires)
}

// Middleware requires a valid bearer token on every request the skipper
// does not exempt and stores the principal on the request context.
func (a *Authenticator) Middleware(skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}

			p, err := a.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			ctx := WithPrincipal(c.Request().Context(), p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Unauthorized("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperr.Unauthorized("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}
