// Package googleauth authenticates end users via Google's OAuth2
// authorization-code flow and maintains their identity for the duration of
// a browser session. The chat application in front of it only ever sees an
// opaque session id; provider tokens never leave this package.
package googleauth

import (
	"net/http"

	"github.com/datachat-app/google-auth/credentials"
	"github.com/datachat-app/google-auth/logging"
	"github.com/datachat-app/google-auth/oidc"
	"github.com/datachat-app/google-auth/session"
	"github.com/datachat-app/google-auth/state"
)

type Authenticator struct {
	logger     *logging.Logger
	httpClient *http.Client

	Config     *Config
	Credential *credentials.ClientCredential
	States     *state.Store
	Sessions   *session.Manager
	Jwks       *oidc.JwksHandler
}

// New resolves the client credential and wires up the flow. A credential
// resolution failure is fatal; the process cannot serve authentication and
// should exit rather than limp along.
func New(config *Config, resolver *credentials.Resolver, storage session.Storage) (*Authenticator, error) {
	logger := logging.CreateLogger(config.LogLevel)

	if err := config.validate(); err != nil {
		return nil, err
	}

	cred, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}

	logger.Log(logging.LevelInfo, "Authorization endpoint: %s", cred.AuthEndpoint)
	logger.Log(logging.LevelInfo, "Redirect URI: %s", cred.RedirectURL.String())

	if storage == nil {
		storage = session.NewMemoryStorage()
	}

	return &Authenticator{
		logger:     logger,
		httpClient: &http.Client{Timeout: exchangeTimeout},
		Config:     config,
		Credential: cred,
		States:     state.NewStore(config.StateTTL),
		Sessions:   session.NewManager(storage, config.SessionMaxLifetime),
		Jwks:       &oidc.JwksHandler{Url: config.JwksUrl},
	}, nil
}

// Close stops the background expiry sweepers.
func (a *Authenticator) Close() {
	a.States.Stop()
	a.Sessions.Stop()
}
