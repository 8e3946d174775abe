package googleauth

import (
	"errors"
	"time"

	"github.com/datachat-app/google-auth/oidc"
)

const DefaultCookieName = "DatachatAuth.Session"

type Config struct {
	LogLevel string `json:"log_level"`

	// Secret encrypts the session cookie value. Must be exactly 32
	// characters.
	Secret string `json:"secret"`

	Scopes []string `json:"scopes"`

	// StateTTL bounds how long an authorization attempt may stay in flight.
	StateTTL time.Duration `json:"state_ttl"`

	// SessionMaxLifetime caps a login regardless of token expiry.
	SessionMaxLifetime time.Duration `json:"session_max_lifetime"`

	CookieName   string `json:"cookie_name"`
	CookieSecure bool   `json:"cookie_secure"`

	PostLoginRedirectUri       string   `json:"post_login_redirect_uri"`
	ValidPostLoginRedirectUris []string `json:"valid_post_login_redirect_uris"`
	PostLogoutRedirectUri      string   `json:"post_logout_redirect_uri"`

	// ValidIssuer is accepted with or without the https scheme; Google has
	// issued both forms.
	ValidIssuer string `json:"valid_issuer"`
	JwksUrl     string `json:"jwks_url"`

	// FetchUserinfo fills profile fields from the userinfo endpoint when
	// the id-token lacks them.
	FetchUserinfo bool `json:"fetch_userinfo"`

	Authorization *AuthorizationConfig `json:"authorization"`
}

type AuthorizationConfig struct {
	AssertClaims []ClaimAssertion `json:"assert_claims"`
}

type ClaimAssertion struct {
	Name  string   `json:"name"`
	AnyOf []string `json:"anyOf"`
	AllOf []string `json:"allOf"`
}

func CreateConfig() *Config {
	return &Config{
		LogLevel:              "INFO",
		Scopes:                []string{"openid", "email", "profile"},
		StateTTL:              10 * time.Minute,
		SessionMaxLifetime:    12 * time.Hour,
		CookieName:            DefaultCookieName,
		CookieSecure:          true,
		PostLoginRedirectUri:  "/",
		PostLogoutRedirectUri: "/",
		ValidIssuer:           "https://accounts.google.com",
		JwksUrl:               oidc.GoogleJwksURL,
		Authorization:         &AuthorizationConfig{},
	}
}

func (c *Config) validate() error {
	if len(c.Secret) != 32 {
		return errors.New("invalid secret: must be exactly 32 characters")
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid", "email", "profile"}
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.ValidIssuer == "" {
		c.ValidIssuer = "https://accounts.google.com"
	}
	if c.JwksUrl == "" {
		c.JwksUrl = oidc.GoogleJwksURL
	}
	if c.Authorization == nil {
		c.Authorization = &AuthorizationConfig{}
	}
	return nil
}

// exchangeTimeout bounds the outbound token-exchange and userinfo calls.
// Nothing else in the subsystem performs network I/O.
const exchangeTimeout = 15 * time.Second
