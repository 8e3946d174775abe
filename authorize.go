package googleauth

import (
	"net/url"
	"strings"

	"github.com/datachat-app/google-auth/logging"
)

// BuildAuthorizationURL issues a fresh state token and constructs the
// outbound authorization URL. Pure URL construction apart from the state
// side effect; no network call happens here. redirectAfter is where the
// browser lands after a successful callback and is carried server-side in
// the state entry, never inside the URL's state parameter.
func (a *Authenticator) BuildAuthorizationURL(redirectAfter string) (string, error) {
	issued, err := a.States.Issue(redirectAfter)
	if err != nil {
		return "", err
	}

	endpoint, err := url.Parse(a.Credential.AuthEndpoint)
	if err != nil {
		return "", err
	}

	// The redirect_uri must match a URI registered with Google byte for
	// byte, so it is passed through without any normalization.
	endpoint.RawQuery = url.Values{
		"client_id":              {a.Credential.ClientID},
		"redirect_uri":           {a.Credential.RedirectURL.String()},
		"response_type":          {"code"},
		"scope":                  {strings.Join(a.Config.Scopes, " ")},
		"state":                  {issued.Token},
		"access_type":            {"online"},
		"include_granted_scopes": {"true"},
		"prompt":                 {"select_account"},
	}.Encode()

	a.logger.Log(logging.LevelDebug, "Built authorization URL for state %s...", issued.Token[:8])

	return endpoint.String(), nil
}
