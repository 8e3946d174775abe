package googleauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datachat-app/google-auth/logging"
	"github.com/datachat-app/google-auth/session"
)

// validateIDToken checks the id-token signature against the cached JWKS and
// validates expiry, audience and issuer. On a signature failure the key set
// is reloaded once before giving up, which covers Google's key rotation.
func (a *Authenticator) validateIDToken(rawToken string) (jwt.MapClaims, error) {
	if rawToken == "" {
		return nil, errors.New("token response carries no id_token")
	}

	if err := a.Jwks.EnsureLoaded(a.logger, a.httpClient, false); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithAudience(a.Credential.ClientID),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(rawToken, claims, a.Jwks.Keyfunc)
	if err != nil {
		if reloadErr := a.Jwks.EnsureLoaded(a.logger, a.httpClient, true); reloadErr != nil {
			return nil, reloadErr
		}

		claims = jwt.MapClaims{}
		_, err = parser.ParseWithClaims(rawToken, claims, a.Jwks.Keyfunc)
		if err != nil {
			a.logger.Log(logging.LevelError, "Failed to validate id_token: %v", err)
			return nil, err
		}
	}

	issuer, err := claims.GetIssuer()
	if err != nil {
		return nil, err
	}
	// Google has issued both "https://accounts.google.com" and
	// "accounts.google.com" as iss values.
	if issuer != a.Config.ValidIssuer && issuer != strings.TrimPrefix(a.Config.ValidIssuer, "https://") {
		return nil, fmt.Errorf("unexpected issuer %q", issuer)
	}

	return claims, nil
}

// identityFromClaims derives the immutable user identity. Subject and email
// are required; the rest is best effort.
func identityFromClaims(claims jwt.MapClaims) (session.UserIdentity, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return session.UserIdentity{}, errors.New("id_token carries no sub claim")
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return session.UserIdentity{}, errors.New("id_token carries no email claim")
	}

	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	hostedDomain, _ := claims["hd"].(string)

	return session.UserIdentity{
		SubjectID:    sub,
		Email:        email,
		DisplayName:  name,
		Picture:      picture,
		HostedDomain: hostedDomain,
	}, nil
}
