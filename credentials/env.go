package credentials

import (
	"github.com/caarlos0/env/v11"
)

type envCredential struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `env:"GOOGLE_REDIRECT_URI"`
	AuthURI      string `env:"GOOGLE_AUTH_URI"`
	TokenURI     string `env:"GOOGLE_TOKEN_URI"`
}

// EnvSource reads the flat credential layout from process environment
// variables. Pair it with godotenv in the entrypoint to also cover a local
// .env file.
type EnvSource struct{}

func NewEnvSource() *EnvSource {
	return &EnvSource{}
}

func (s *EnvSource) Name() string {
	return "environment"
}

func (s *EnvSource) Load() (*ClientCredential, error) {
	cfg := envCredential{}
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	if cfg.ClientID == "" && cfg.ClientSecret == "" && cfg.RedirectURI == "" {
		return nil, ErrSourceNotPresent
	}

	return newCredential(s.Name(), cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, cfg.AuthURI, cfg.TokenURI)
}
