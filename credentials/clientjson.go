package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tidwall/gjson"
)

// ClientJSONSource reads the OAuth client JSON downloadable from the Google
// Cloud console. Both the "web" and the "installed" application shapes are
// supported. The redirect URI is supplied by the deployment, not the file,
// but when the file lists registered redirect_uris the configured one must
// be among them; Google rejects the login otherwise, so failing early here
// turns a confusing provider error into a configuration error.
type ClientJSONSource struct {
	Path        string
	RedirectURI string
}

func NewClientJSONSource(path string, redirectURI string) *ClientJSONSource {
	return &ClientJSONSource{Path: path, RedirectURI: redirectURI}
}

func (s *ClientJSONSource) Name() string {
	return "client json " + s.Path
}

func (s *ClientJSONSource) Load() (*ClientCredential, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSourceNotPresent
		}
		return nil, err
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("source %s: file is empty", s.Name())
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("source %s: not valid JSON", s.Name())
	}

	block := gjson.GetBytes(raw, "web")
	if !block.Exists() {
		block = gjson.GetBytes(raw, "installed")
	}
	if !block.Exists() {
		return nil, fmt.Errorf("source %s: neither a \"web\" nor an \"installed\" block found", s.Name())
	}

	if uris := block.Get("redirect_uris"); uris.IsArray() && len(uris.Array()) > 0 {
		registered := false
		for _, u := range uris.Array() {
			if u.String() == s.RedirectURI {
				registered = true
				break
			}
		}
		if !registered {
			return nil, fmt.Errorf("source %s: redirect uri %q is not among the registered redirect_uris",
				s.Name(), s.RedirectURI)
		}
	}

	return newCredential(
		s.Name(),
		block.Get("client_id").String(),
		block.Get("client_secret").String(),
		s.RedirectURI,
		block.Get("auth_uri").String(),
		block.Get("token_uri").String(),
	)
}
