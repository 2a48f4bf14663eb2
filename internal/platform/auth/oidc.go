package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/r3hc/ovr/internal/platform/telemetry"
)

// OIDCDiscovery is the subset of /.well-known/openid-configuration we use.
type OIDCDiscovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// JWKSKey is a single RSA JSON Web Key.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

func newHTTPClient() *resty.Client {
	return resty.New().
		SetTransport(telemetry.HTTPTransport(nil)).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Accept", "application/json")
}

func getJSON(ctx context.Context, client *resty.Client, url string, out any) error {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// DiscoverOIDC fetches the provider's discovery document.
func DiscoverOIDC(ctx context.Context, client *resty.Client, issuer string) (*OIDCDiscovery, error) {
	var doc OIDCDiscovery
	url := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"
	if err := getJSON(ctx, client, url, &doc); err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	if doc.JWKSURI == "" {
		return nil, errors.New("oidc discovery document missing jwks_uri")
	}
	return &doc, nil
}

// JWKSCache holds RSA keys by kid and refetches on TTL expiry or unknown kid.
type JWKSCache struct {
	mu        sync.RWMutex
	client    *resty.Client
	url       string
	ttl       time.Duration
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSCache(client *resty.Client, url string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{client: client, url: url, ttl: ttl, keys: make(map[string]*rsa.PublicKey)}
}

func (c *JWKSCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if key, ok = c.keys[kid]; !ok {
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	var set JWKSResponse
	if err := getJSON(ctx, c.client, c.url, &set); err != nil {
		return fmt.Errorf("fetch JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

// ExternalClaims are the identity-provider claims mapped onto a local user.
type ExternalClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// ExternalVerifier validates RS256 tokens from the configured identity provider.
type ExternalVerifier struct {
	client   *resty.Client
	issuer   string
	audience string

	once    sync.Once
	jwksURL string
	initErr error
	cache   *JWKSCache
}

// NewExternalVerifier returns a verifier. When jwksURL is empty it is
// discovered from the issuer on first use.
func NewExternalVerifier(issuer, jwksURL, audience string) *ExternalVerifier {
	return &ExternalVerifier{client: newHTTPClient(), issuer: issuer, audience: audience, jwksURL: jwksURL}
}

func (v *ExternalVerifier) init(ctx context.Context) error {
	v.once.Do(func() {
		if v.jwksURL == "" {
			doc, err := DiscoverOIDC(ctx, v.client, v.issuer)
			if err != nil {
				v.initErr = err
				return
			}
			v.jwksURL = doc.JWKSURI
		}
		v.cache = NewJWKSCache(v.client, v.jwksURL, 5*time.Minute)
	})
	return v.initErr
}

func (v *ExternalVerifier) Verify(ctx context.Context, tokenStr string) (*ExternalClaims, error) {
	if err := v.init(ctx); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &ExternalClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.cache.Key(ctx, kid)
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
