// Package oidc fetches and caches the provider's JSON Web Key Set and
// resolves signing keys for id-token validation.
package oidc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datachat-app/google-auth/logging"
	"github.com/datachat-app/google-auth/utils"
)

// GoogleJwksURL is the key set Google signs id-tokens with.
const GoogleJwksURL = "https://www.googleapis.com/oauth2/v3/certs"

const (
	// maxCacheAge forces a reload of the key set after this duration.
	maxCacheAge = 6 * time.Hour

	// minReloadInterval rate-limits forced reloads triggered by unknown kids.
	minReloadInterval = 5 * time.Minute
)

type JwksHandler struct {
	Url string

	rsaKeys   map[string]*rsa.PublicKey
	ecdsaKeys map[string]*ecdsa.PublicKey
	cacheDate time.Time

	lock sync.Mutex
}

type jwksKey struct {
	Crv string `json:"crv,omitempty"`
	E   string `json:"e,omitempty"`
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n,omitempty"`
	Use string `json:"use,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

// EnsureLoaded loads the key set if it has never been fetched or the cache
// is stale. With forceReload, a refetch is performed unless one happened
// within minReloadInterval, so a flood of tokens with bogus kids cannot
// hammer the provider.
func (h *JwksHandler) EnsureLoaded(logger *logging.Logger, httpClient *http.Client, forceReload bool) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	now := time.Now()

	reload := h.rsaKeys == nil && h.ecdsaKeys == nil

	if now.Sub(h.cacheDate) > maxCacheAge {
		reload = true
	}

	if forceReload && now.Sub(h.cacheDate) > minReloadInterval {
		reload = true
	}

	if !reload {
		return nil
	}

	logger.Log(logging.LevelInfo, "Reloading JWKS from %s...", h.Url)

	err := h.loadKeys(httpClient)
	if err != nil {
		logger.Log(logging.LevelError, "Error loading JWKS: %v", err)
		return err
	}

	logger.Log(logging.LevelInfo, "JWKS reloaded, %d RSA and %d ECDSA keys", len(h.rsaKeys), len(h.ecdsaKeys))
	return nil
}

func (h *JwksHandler) loadKeys(httpClient *http.Client) error {
	resp, err := httpClient.Get(h.Url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New("HTTP error - Status code: " + resp.Status)
	}

	document := jwksDocument{}
	if err := json.NewDecoder(resp.Body).Decode(&document); err != nil {
		return err
	}

	rsaKeys, ecdsaKeys, err := extractKeys(&document)
	if err != nil {
		return err
	}

	h.rsaKeys = rsaKeys
	h.ecdsaKeys = ecdsaKeys
	h.cacheDate = time.Now()

	return nil
}

// Keyfunc resolves the verification key for a token by kid. It is intended
// to be passed to jwt.Parser.ParseWithClaims.
func (h *JwksHandler) Keyfunc(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("token has no kid header")
	}

	alg := token.Method.Alg()

	h.lock.Lock()
	defer h.lock.Unlock()

	if strings.HasPrefix(alg, "RS") {
		if k, ok := h.rsaKeys[kid]; ok {
			return k, nil
		}
		return nil, errors.New("unknown kid " + kid)
	}

	if strings.HasPrefix(alg, "EC") || strings.HasPrefix(alg, "ES") {
		if k, ok := h.ecdsaKeys[kid]; ok {
			return k, nil
		}
		return nil, errors.New("unknown kid " + kid)
	}

	return nil, fmt.Errorf("unsupported algorithm %s", alg)
}

func extractKeys(document *jwksDocument) (map[string]*rsa.PublicKey, map[string]*ecdsa.PublicKey, error) {
	rsaKeys := make(map[string]*rsa.PublicKey)
	ecdsaKeys := make(map[string]*ecdsa.PublicKey)

	for _, k := range document.Keys {
		if k.Use != "sig" {
			continue
		}

		switch k.Kty {
		case "RSA":
			extracted, err := extractRsaKey(&k)
			if err == nil {
				rsaKeys[k.Kid] = extracted
			}
		case "EC":
			extracted, err := extractEcdsaKey(&k)
			if err == nil {
				ecdsaKeys[k.Kid] = extracted
			}
		}
	}

	if len(rsaKeys) == 0 && len(ecdsaKeys) == 0 {
		return nil, nil, errors.New("no public keys found")
	}

	return rsaKeys, ecdsaKeys, nil
}

func extractRsaKey(key *jwksKey) (*rsa.PublicKey, error) {
	decodedN, err := utils.ParseBigInt(key.N)
	if err != nil {
		return nil, err
	}

	decodedE, err := utils.ParseInt(key.E)
	if err != nil {
		return nil, err
	}

	return &rsa.PublicKey{N: decodedN, E: decodedE}, nil
}

func extractEcdsaKey(key *jwksKey) (*ecdsa.PublicKey, error) {
	decodedX, err := utils.ParseBigInt(key.X)
	if err != nil {
		return nil, err
	}

	decodedY, err := utils.ParseBigInt(key.Y)
	if err != nil {
		return nil, err
	}

	curve := getEllipticCurve(key.Crv)
	if curve == nil {
		return nil, fmt.Errorf("unsupported curve %s", key.Crv)
	}

	return &ecdsa.PublicKey{Curve: curve, X: decodedX, Y: decodedY}, nil
}

func getEllipticCurve(crv string) elliptic.Curve {
	switch crv {
	case "P-224":
		return elliptic.P224()
	case "P-256":
		return elliptic.P256()
	case "P-384":
		return elliptic.P384()
	case "P-521":
		return elliptic.P521()
	default:
		return nil
	}
}
