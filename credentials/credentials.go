// Package credentials locates the Google OAuth client identity by probing
// an ordered, explicit list of configuration sources.
package credentials

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Google's fixed OAuth2 endpoints. Sources may override them, which is how
// tests point the flow at local stub servers.
const (
	GoogleAuthEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	GoogleUserinfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"
)

// ErrSourceNotPresent is returned by a Source whose backing configuration
// does not exist at all, as opposed to existing but being incomplete.
var ErrSourceNotPresent = errors.New("credential source not present")

// ClientCredential is the resolved OAuth client identity. Immutable once
// resolved for the process lifetime.
type ClientCredential struct {
	ClientID     string
	ClientSecret string
	RedirectURL  *url.URL

	AuthEndpoint     string
	TokenEndpoint    string
	UserinfoEndpoint string
}

// Source yields a complete ClientCredential or explains why it cannot.
// A source that is present but incomplete must fail as a whole; partial
// values never leak into the next source.
type Source interface {
	Name() string
	Load() (*ClientCredential, error)
}

// ConfigurationError is fatal: no source yielded a complete credential set
// and the process cannot serve authentication.
type ConfigurationError struct {
	Attempts []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no credential source yielded a complete client credential: %s",
		strings.Join(e.Attempts, "; "))
}

// newCredential validates completeness and builds the credential. Endpoint
// overrides fall back to Google's endpoints when empty.
func newCredential(sourceName, clientID, clientSecret, redirectURI, authURI, tokenURI string) (*ClientCredential, error) {
	var missing []string
	if clientID == "" {
		missing = append(missing, "client id")
	}
	if clientSecret == "" {
		missing = append(missing, "client secret")
	}
	if redirectURI == "" {
		missing = append(missing, "redirect uri")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("source %s is incomplete: missing %s", sourceName, strings.Join(missing, ", "))
	}

	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("source %s: invalid redirect uri: %w", sourceName, err)
	}
	if redirectURL.Scheme != "http" && redirectURL.Scheme != "https" || redirectURL.Host == "" {
		return nil, fmt.Errorf("source %s: redirect uri %q is not an absolute http(s) url", sourceName, redirectURI)
	}

	if authURI == "" {
		authURI = GoogleAuthEndpoint
	}
	if tokenURI == "" {
		tokenURI = GoogleTokenEndpoint
	}

	return &ClientCredential{
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		RedirectURL:      redirectURL,
		AuthEndpoint:     authURI,
		TokenEndpoint:    tokenURI,
		UserinfoEndpoint: GoogleUserinfoEndpoint,
	}, nil
}
