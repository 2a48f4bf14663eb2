package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type testIdP struct {
	server    *httptest.Server
	key       *rsa.PrivateKey
	kid       string
	jwksHits  atomic.Int32
	discovery atomic.Int32
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	idp := &testIdP{key: key, kid: "kid-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		idp.discovery.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(OIDCDiscovery{Issuer: idp.server.URL, JWKSURI: idp.server.URL + "/jwks"})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		idp.jwksHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(JWKSResponse{Keys: []JWKSKey{{
			Kty: "RSA",
			Kid: idp.kid,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	})
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *testIdP) sign(t *testing.T, claims ExternalClaims, kid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(idp.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func (idp *testIdP) claims(sub string) ExternalClaims {
	return ExternalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    idp.server.URL,
			Audience:  jwt.ClaimStrings{"ovr"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "ext-jti",
		},
		Email: "nurse@r3hc.sa",
	}
}

func TestExternalVerifier_DiscoveryAndVerify(t *testing.T) {
	idp := newTestIdP(t)
	v := NewExternalVerifier(idp.server.URL, "", "ovr")

	claims, err := v.Verify(context.Background(), idp.sign(t, idp.claims("sub-1"), idp.kid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "sub-1" || claims.Email != "nurse@r3hc.sa" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	// second verification is served from cache
	if _, err := v.Verify(context.Background(), idp.sign(t, idp.claims("sub-2"), idp.kid)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idp.discovery.Load() != 1 {
		t.Errorf("expected 1 discovery fetch, got %d", idp.discovery.Load())
	}
	if idp.jwksHits.Load() != 1 {
		t.Errorf("expected 1 JWKS fetch, got %d", idp.jwksHits.Load())
	}
}

func TestExternalVerifier_Rejects(t *testing.T) {
	idp := newTestIdP(t)
	v := NewExternalVerifier(idp.server.URL, idp.server.URL+"/jwks", "ovr")

	wrongAud := idp.claims("sub")
	wrongAud.Audience = jwt.ClaimStrings{"other"}

	expired := idp.claims("sub")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := idp.claims("")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong audience", idp.sign(t, wrongAud, idp.kid)},
		{"expired", idp.sign(t, expired, idp.kid)},
		{"unknown kid", idp.sign(t, idp.claims("sub"), "kid-unknown")},
		{"missing subject", idp.sign(t, noSubject, idp.kid)},
		{"garbage", "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestExternalVerifier_DiscoveryFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	v := NewExternalVerifier(server.URL, "", "")
	v.client.SetRetryCount(0)
	if _, err := v.Verify(context.Background(), "x.y.z"); err == nil {
		t.Fatal("expected discovery error")
	}
}

func TestParseRSAPublicKey_BadEncoding(t *testing.T) {
	if _, err := parseRSAPublicKey(JWKSKey{N: "!!", E: "AQAB"}); err == nil {
		t.Error("expected error for invalid modulus")
	}
}
