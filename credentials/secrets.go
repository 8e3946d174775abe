package credentials

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datachat-app/google-auth/utils"
)

// secretsDocument models the two layouts a secrets file may use. Both are
// equally valid; the flat keys are probed first purely so resolution is
// deterministic when a file carries both.
//
// Flat:
//
//	GOOGLE_CLIENT_ID: "..."
//	GOOGLE_CLIENT_SECRET: "..."
//	REDIRECT_URI: "https://app.example.com/auth/callback"
//
// Nested:
//
//	auth:
//	  REDIRECT_URI: "https://app.example.com/auth/callback"
//	  google:
//	    GOOGLE_CLIENT_ID: "..."
//	    GOOGLE_CLIENT_SECRET: "..."
type secretsDocument struct {
	ClientID     string `yaml:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `yaml:"REDIRECT_URI"`
	AuthURI      string `yaml:"AUTH_URI"`
	TokenURI     string `yaml:"TOKEN_URI"`

	Auth struct {
		RedirectURI string `yaml:"REDIRECT_URI"`
		Google      struct {
			ClientID     string `yaml:"GOOGLE_CLIENT_ID"`
			ClientSecret string `yaml:"GOOGLE_CLIENT_SECRET"`
		} `yaml:"google"`
	} `yaml:"auth"`
}

// SecretsFileSource reads a managed YAML secrets file. Values may reference
// environment variables with the ${NAME} syntax.
type SecretsFileSource struct {
	Path string
}

func NewSecretsFileSource(path string) *SecretsFileSource {
	return &SecretsFileSource{Path: path}
}

func (s *SecretsFileSource) Name() string {
	return "secrets file " + s.Path
}

func (s *SecretsFileSource) Load() (*ClientCredential, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSourceNotPresent
		}
		return nil, err
	}

	doc := secretsDocument{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	clientID := doc.ClientID
	clientSecret := doc.ClientSecret
	redirectURI := doc.RedirectURI

	// Fall back to the nested section, field by field. A source that ends
	// up incomplete is rejected as a whole by newCredential.
	if clientID == "" {
		clientID = doc.Auth.Google.ClientID
	}
	if clientSecret == "" {
		clientSecret = doc.Auth.Google.ClientSecret
	}
	if redirectURI == "" {
		redirectURI = doc.Auth.RedirectURI
	}

	clientID = utils.ExpandEnvironmentVariableString(clientID)
	clientSecret = utils.ExpandEnvironmentVariableString(clientSecret)
	redirectURI = utils.ExpandEnvironmentVariableString(redirectURI)

	return newCredential(s.Name(), clientID, clientSecret, redirectURI, doc.AuthURI, doc.TokenURI)
}
