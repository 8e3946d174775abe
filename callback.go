package googleauth

import (
	"net/url"

	"github.com/datachat-app/google-auth/logging"
	"github.com/datachat-app/google-auth/session"
)

// HandleCallback consumes the provider's redirect and produces a verified
// session plus the post-login redirect target recorded when the flow
// started. The steps run strictly forward; any failure is terminal for the
// attempt and the user restarts with a new authorization request.
func (a *Authenticator) HandleCallback(query url.Values) (*session.Session, string, error) {
	// The provider reported an error (user denied consent, or a
	// provider-side failure). Nothing to exchange.
	if providerError := query.Get("error"); providerError != "" {
		a.logger.Log(logging.LevelInfo, "Authorization was denied by the provider: %s", providerError)
		return nil, "", authError(AuthErrorDenied, providerError, nil)
	}

	stateToken := query.Get("state")
	if stateToken == "" {
		a.logger.Log(logging.LevelWarn, "State on callback request is missing.")
		return nil, "", authError(AuthErrorInvalidState, "state parameter missing", nil)
	}

	// Single-use: whatever happens after this point, the token is spent.
	entry, err := a.States.Consume(stateToken)
	if err != nil {
		a.logger.Log(logging.LevelWarn, "State on callback request is invalid: %s", err.Error())
		return nil, "", authError(AuthErrorInvalidState, "", err)
	}

	code := query.Get("code")
	if code == "" {
		a.logger.Log(logging.LevelWarn, "Code on callback request is missing.")
		return nil, "", authError(AuthErrorMissingCode, "code parameter missing", nil)
	}

	tokens, err := a.exchangeAuthCode(code)
	if err != nil {
		return nil, "", authError(AuthErrorExchangeFailed, "", err)
	}

	claims, err := a.validateIDToken(tokens.rawIDToken)
	if err != nil {
		return nil, "", authError(AuthErrorInvalidToken, "", err)
	}
	tokens.IDTokenClaims = claims

	identity, err := identityFromClaims(claims)
	if err != nil {
		return nil, "", authError(AuthErrorInvalidToken, "", err)
	}

	if a.Config.FetchUserinfo && (identity.DisplayName == "" || identity.Picture == "") {
		userinfo, err := a.getUserinfo(tokens.AccessToken, identity.SubjectID)
		if err != nil {
			// Profile enrichment is best effort; the verified identity
			// stands on its own.
			a.logger.Log(logging.LevelWarn, "Failed to fetch userinfo: %s", err.Error())
		} else {
			if identity.DisplayName == "" {
				identity.DisplayName, _ = userinfo["name"].(string)
			}
			if identity.Picture == "" {
				identity.Picture, _ = userinfo["picture"].(string)
			}
		}
	}

	if !isAuthorized(a.logger, a.Config.Authorization, claims) {
		return nil, "", authError(AuthErrorDenied, "account does not satisfy the claim assertions", nil)
	}

	sess, err := a.Sessions.Create(identity, tokens.ExpiresAt)
	if err != nil {
		return nil, "", err
	}

	a.logger.Log(logging.LevelInfo, "Authenticated %s, session expires %s",
		identity.Email, sess.ExpiresAt.Format("2006-01-02 15:04:05"))

	return sess, entry.RedirectURL, nil
}
