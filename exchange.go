package googleauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datachat-app/google-auth/logging"
)

// TokenSet is the result of a successful code exchange. It stays inside
// this package; only the derived identity and expiry reach the session
// layer.
type TokenSet struct {
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
	IDTokenClaims jwt.MapClaims

	rawIDToken string
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
}

// exchangeAuthCode trades the authorization code for tokens at the token
// endpoint. Codes are single-use; the call is never retried here.
func (a *Authenticator) exchangeAuthCode(code string) (*TokenSet, error) {
	resp, err := a.httpClient.PostForm(a.Credential.TokenEndpoint, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {a.Credential.ClientID},
		"client_secret": {a.Credential.ClientSecret},
		"code":          {code},
		"redirect_uri":  {a.Credential.RedirectURL.String()},
	})
	if err != nil {
		a.logger.Log(logging.LevelError, "exchangeAuthCode: couldn't POST to token endpoint: %s", err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		a.logger.Log(logging.LevelError, "exchangeAuthCode: bad response from token endpoint (status %d): %s",
			resp.StatusCode, string(body))
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	parsed := tokenResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.logger.Log(logging.LevelError, "exchangeAuthCode: couldn't decode token response: %s", err.Error())
		return nil, err
	}

	if parsed.AccessToken == "" {
		return nil, errors.New("token response carries no access token")
	}

	expiresAt := time.Time{}
	if parsed.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}

	return &TokenSet{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresAt:    expiresAt,
		rawIDToken:   parsed.IDToken,
	}, nil
}

// getUserinfo fetches the userinfo endpoint with the access token. A `sub`
// mismatch with the id-token discards the whole response rather than mixing
// identities.
func (a *Authenticator) getUserinfo(accessToken string, idTokenSubject string) (map[string]interface{}, error) {
	req, err := http.NewRequest(http.MethodGet, a.Credential.UserinfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		a.logger.Log(logging.LevelError, "getUserinfo: bad response (status %d): %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, err
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub != idTokenSubject {
		a.logger.Log(logging.LevelWarn, "getUserinfo: subject mismatch, discarding userinfo response")
		return map[string]interface{}{}, nil
	}

	return claims, nil
}
