package googleauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/datachat-app/google-auth/state"
)

// issueState starts an authorization attempt and returns its state token.
func issueState(t *testing.T, auth *Authenticator, redirect string) string {
	t.Helper()
	entry, err := auth.States.Issue(redirect)
	if err != nil {
		t.Fatal(err)
	}
	return entry.Token
}

func assertAuthErrorKind(t *testing.T, err error, kind AuthErrorKind) *AuthError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, but got none")
	}
	authErr := &AuthError{}
	if !errors.As(err, &authErr) {
		t.Fatalf("expected an AuthError, but got %T: %v", err, err)
	}
	if authErr.Kind != kind {
		t.Fatalf("expected kind %s, but got %s: %v", kind, authErr.Kind, err)
	}
	return authErr
}

func TestHandleCallbackSuccess(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)
	tokens := newTokenServer(t, signIDToken(t, key, defaultIDClaims()))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)

	stateToken := issueState(t, auth, "/chat")

	sess, redirect, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if redirect != "/chat" {
		t.Errorf("expected redirect /chat, but got %q", redirect)
	}
	if sess.Identity.Email != "alice@example.com" {
		t.Errorf("unexpected email %q", sess.Identity.Email)
	}
	if sess.Identity.SubjectID != "109337896" {
		t.Errorf("unexpected subject %q", sess.Identity.SubjectID)
	}
	if sess.Identity.DisplayName != "Alice Example" {
		t.Errorf("unexpected display name %q", sess.Identity.DisplayName)
	}

	// The session must be resolvable afterwards.
	identity, err := auth.Sessions.Lookup(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if identity.Email != "alice@example.com" {
		t.Errorf("lookup returned unexpected identity %v", identity)
	}
}

func TestHandleCallbackDenied(t *testing.T) {
	auth := newTestAuthenticator(t, testCredential(t, "http://unused.invalid/token"), "")

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{
		"error": {"access_denied"},
		"state": {stateToken},
		"code":  {"whatever"},
	})

	authErr := assertAuthErrorKind(t, err, AuthErrorDenied)
	if authErr.Reason != "access_denied" {
		t.Errorf("expected the provider error to be reported, got %q", authErr.Reason)
	}

	// The denial short-circuits before state consumption; the attempt's
	// token is still outstanding.
	if _, err := auth.States.Consume(stateToken); err != nil {
		t.Errorf("state token should still be consumable, got %v", err)
	}
}

func TestHandleCallbackMissingState(t *testing.T) {
	auth := newTestAuthenticator(t, testCredential(t, "http://unused.invalid/token"), "")

	_, _, err := auth.HandleCallback(url.Values{"code": {"stub-code"}})
	assertAuthErrorKind(t, err, AuthErrorInvalidState)
}

func TestHandleCallbackUnknownState(t *testing.T) {
	auth := newTestAuthenticator(t, testCredential(t, "http://unused.invalid/token"), "")

	_, _, err := auth.HandleCallback(url.Values{
		"state": {"forged-or-stale"},
		"code":  {"stub-code"},
	})

	authErr := assertAuthErrorKind(t, err, AuthErrorInvalidState)
	if !errors.Is(authErr, state.ErrUnknown) {
		t.Errorf("expected the state error to be preserved as cause, got %v", authErr.Err)
	}
}

func TestHandleCallbackStateIsSingleUse(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)
	tokens := newTokenServer(t, signIDToken(t, key, defaultIDClaims()))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)

	stateToken := issueState(t, auth, "/")
	query := url.Values{"state": {stateToken}, "code": {"stub-code"}}

	if _, _, err := auth.HandleCallback(query); err != nil {
		t.Fatal(err)
	}

	// Replaying the callback with the same state must fail.
	_, _, err := auth.HandleCallback(query)
	assertAuthErrorKind(t, err, AuthErrorInvalidState)
}

func TestHandleCallbackMissingCode(t *testing.T) {
	auth := newTestAuthenticator(t, testCredential(t, "http://unused.invalid/token"), "")

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{"state": {stateToken}})
	assertAuthErrorKind(t, err, AuthErrorMissingCode)

	// The failed attempt consumed its state; restarting requires a new
	// authorization request.
	_, err = auth.States.Consume(stateToken)
	if !errors.Is(err, state.ErrUnknown) {
		t.Errorf("state token should be spent, got %v", err)
	}
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(rejecting.Close)

	auth := newTestAuthenticator(t, testCredential(t, rejecting.URL), "")

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"rejected-code"},
	})
	assertAuthErrorKind(t, err, AuthErrorExchangeFailed)

	// The state stays consumed even though the exchange failed.
	_, err = auth.States.Consume(stateToken)
	if !errors.Is(err, state.ErrUnknown) {
		t.Errorf("state token should be spent, got %v", err)
	}
}

func TestHandleCallbackRejectsTamperedToken(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)

	// Signed with a key the JWKS server does not know.
	rogueKey := generateRSAKey(t)
	tokens := newTokenServer(t, signIDToken(t, rogueKey, defaultIDClaims()))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	})
	assertAuthErrorKind(t, err, AuthErrorInvalidToken)
}

func TestHandleCallbackRejectsWrongAudience(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)

	claims := defaultIDClaims()
	claims["aud"] = "some-other-client"
	tokens := newTokenServer(t, signIDToken(t, key, claims))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	})
	assertAuthErrorKind(t, err, AuthErrorInvalidToken)
}

func TestHandleCallbackRejectsWrongIssuer(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)

	claims := defaultIDClaims()
	claims["iss"] = "https://evil.example.com"
	tokens := newTokenServer(t, signIDToken(t, key, claims))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	})
	assertAuthErrorKind(t, err, AuthErrorInvalidToken)
}

func TestHandleCallbackAcceptsBareIssuer(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)

	// Google has historically issued tokens with iss=accounts.google.com.
	claims := defaultIDClaims()
	claims["iss"] = "accounts.google.com"
	tokens := newTokenServer(t, signIDToken(t, key, claims))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)

	stateToken := issueState(t, auth, "/")

	if _, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestHandleCallbackRejectsMissingEmailClaim(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)

	claims := defaultIDClaims()
	delete(claims, "email")
	tokens := newTokenServer(t, signIDToken(t, key, claims))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	})
	assertAuthErrorKind(t, err, AuthErrorInvalidToken)
}

func TestHandleCallbackDeniesUnauthorizedDomain(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)
	tokens := newTokenServer(t, signIDToken(t, key, defaultIDClaims()))

	auth := newTestAuthenticator(t, testCredential(t, tokens.URL), jwks.URL)
	auth.Config.Authorization = &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{
			{Name: "hd", AnyOf: []string{"another-company.com"}},
		},
	}

	stateToken := issueState(t, auth, "/")

	_, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	})
	assertAuthErrorKind(t, err, AuthErrorDenied)
}

func TestHandleCallbackUserinfoEnrichment(t *testing.T) {
	key := generateRSAKey(t)
	jwks := newJwksServer(t, key)

	claims := defaultIDClaims()
	delete(claims, "name")
	tokens := newTokenServer(t, signIDToken(t, key, claims))

	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stub-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"109337896","name":"Alice From Userinfo","picture":"https://example.com/a.png"}`))
	}))
	t.Cleanup(userinfo.Close)

	cred := testCredential(t, tokens.URL)
	cred.UserinfoEndpoint = userinfo.URL

	auth := newTestAuthenticator(t, cred, jwks.URL)
	auth.Config.FetchUserinfo = true

	stateToken := issueState(t, auth, "/")

	sess, _, err := auth.HandleCallback(url.Values{
		"state": {stateToken},
		"code":  {"stub-code"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if sess.Identity.DisplayName != "Alice From Userinfo" {
		t.Errorf("expected userinfo to fill the display name, got %q", sess.Identity.DisplayName)
	}
	if sess.Identity.Picture != "https://example.com/a.png" {
		t.Errorf("expected userinfo to fill the picture, got %q", sess.Identity.Picture)
	}
}
