package googleauth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datachat-app/google-auth/credentials"
	"github.com/datachat-app/google-auth/logging"
)

const (
	testClientID = "test-client-id.apps.googleusercontent.com"
	testSecret   = "MLFs4TT99kOOq8h3UAVRtYoCTDYXiRcZ"
)

// staticSource feeds a pre-built credential into the resolver.
type staticSource struct {
	cred *credentials.ClientCredential
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) Load() (*credentials.ClientCredential, error) { return s.cred, nil }

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// newJwksServer serves a single-key JWKS for the given private key.
func newJwksServer(t *testing.T, privateKey *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	publicKey := &privateKey.PublicKey

	document := map[string]interface{}{
		"keys": []map[string]string{{
			"kid": "test-kid",
			"kty": "RSA",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(document)
	}))
	t.Cleanup(server.Close)
	return server
}

func defaultIDClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"aud":   testClientID,
		"sub":   "109337896",
		"email": "alice@example.com",
		"name":  "Alice Example",
		"hd":    "example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func signIDToken(t *testing.T, privateKey *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-kid"
	signed, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

// newTokenServer answers the code exchange with the given id_token.
func newTokenServer(t *testing.T, idToken string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("grant_type") != "authorization_code" || r.FormValue("code") == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "stub-access-token",
			"token_type":   "Bearer",
			"expires_in":   3599,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func testCredential(t *testing.T, tokenEndpoint string) *credentials.ClientCredential {
	t.Helper()
	redirectURL, err := url.Parse("http://localhost:8501/auth/callback")
	if err != nil {
		t.Fatal(err)
	}
	return &credentials.ClientCredential{
		ClientID:      testClientID,
		ClientSecret:  "test-client-secret",
		RedirectURL:   redirectURL,
		AuthEndpoint:  credentials.GoogleAuthEndpoint,
		TokenEndpoint: tokenEndpoint,
	}
}

func newTestAuthenticator(t *testing.T, cred *credentials.ClientCredential, jwksURL string) *Authenticator {
	t.Helper()

	config := CreateConfig()
	config.LogLevel = logging.LevelError
	config.Secret = testSecret
	config.CookieSecure = false
	config.JwksUrl = jwksURL

	logger := logging.CreateLogger(logging.LevelError)
	logger.Output = io.Discard

	resolver := credentials.NewResolver(logger, staticSource{cred: cred})

	auth, err := New(config, resolver, nil)
	if err != nil {
		t.Fatal(err)
	}
	auth.logger.Output = io.Discard
	t.Cleanup(auth.Close)

	return auth
}
