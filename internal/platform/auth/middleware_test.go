package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "https://auth.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		OrganizationID: "org-9",
	}
}

// run executes the middleware with the given Authorization header and
// returns the caller seen by the wrapped handler.
func run(t *testing.T, mw echo.MiddlewareFunc, header string) (*Caller, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *Caller
	h := mw(func(c echo.Context) error {
		if caller, ok := CallerFromContext(c.Request().Context()); ok {
			seen = &caller
		}
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	return seen, err
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			assertUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(), testSigningKey)

	caller, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "https://auth.example.com"}), "Bearer "+tokenStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller == nil {
		t.Fatal("expected caller on the request context")
	}
	if caller.Subject != "user-123" || caller.OrganizationID != "org-9" {
		t.Errorf("unexpected caller %+v", caller)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(), []byte("some-other-key"))
	caller, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr)
	assertUnauthorized(t, err)
	if caller != nil {
		t.Error("handler must not run for a rejected token")
	}
}

func TestJWTMiddleware_Expired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+createTestToken(t, claims, testSigningKey))
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_NoExpiry(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = nil
	_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+createTestToken(t, claims, testSigningKey))
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(), testSigningKey)
	_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "https://other.example.com"}), "Bearer "+tokenStr)
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	token.Header["kid"] = "k1"
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL})
	for i := 0; i < 2; i++ {
		caller, err := run(t, mw, "Bearer "+tokenStr)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
		if caller == nil || caller.Subject != "user-123" {
			t.Errorf("unexpected caller %+v", caller)
		}
	}
	if fetches != 1 {
		t.Errorf("expected the key set to be fetched once, got %d", fetches)
	}

	// An HMAC token must not pass the RSA verifier.
	_, err = run(t, mw, "Bearer "+createTestToken(t, validClaims(), testSigningKey))
	assertUnauthorized(t, err)
}

func TestDevAuthMiddleware(t *testing.T) {
	caller, err := run(t, DevAuthMiddleware(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller == nil || caller.Subject != "dev-user" {
		t.Errorf("expected dev caller, got %+v", caller)
	}
}

func TestJWTConfig_Enabled(t *testing.T) {
	if (JWTConfig{}).Enabled() {
		t.Error("expected empty config to be disabled")
	}
	if !(JWTConfig{JWKSURL: "https://auth.example.com/jwks"}).Enabled() {
		t.Error("expected jwks config to be enabled")
	}
	if !(JWTConfig{SigningKey: testSigningKey}).Enabled() {
		t.Error("expected signing key config to be enabled")
	}
}
