package googleauth

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/datachat-app/google-auth/logging"
)

func assertionLogger() *logging.Logger {
	logger := logging.CreateLogger(logging.LevelError)
	logger.Output = io.Discard
	return logger
}

func assertionClaims(t *testing.T) map[string]interface{} {
	t.Helper()
	raw := []byte(`{
		"sub": "109337896",
		"email": "alice@example.com",
		"hd": "example.com",
		"groups": [
			"analysts",
			"chat-users",
			"admins"
		]
	}`)

	claims := map[string]interface{}{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		t.Fatal(err)
	}
	return claims
}

func TestNoAssertionsAuthorizesEveryone(t *testing.T) {
	if !isAuthorized(assertionLogger(), &AuthorizationConfig{}, assertionClaims(t)) {
		t.Fatal("empty policy should authorize any authenticated user")
	}

	if !isAuthorized(assertionLogger(), nil, assertionClaims(t)) {
		t.Fatal("nil policy should authorize any authenticated user")
	}
}

func TestClaimExistenceAssertion(t *testing.T) {
	authorized := isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "hd"}},
	}, assertionClaims(t))

	if !authorized {
		t.Fatal("should authorize as the hd claim exists")
	}

	authorized = isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "department"}},
	}, assertionClaims(t))

	if authorized {
		t.Fatal("should not authorize as no such claim exists")
	}
}

func TestHostedDomainAssertion(t *testing.T) {
	authorized := isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "hd", AnyOf: []string{"example.com", "example.org"}}},
	}, assertionClaims(t))

	if !authorized {
		t.Fatal("should authorize a user from an allowed hosted domain")
	}

	authorized = isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "hd", AnyOf: []string{"other.com"}}},
	}, assertionClaims(t))

	if authorized {
		t.Fatal("should not authorize a user from a foreign domain")
	}
}

func TestEmailAllowlistAssertion(t *testing.T) {
	authorized := isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "email", AnyOf: []string{"alice@example.com", "bob@example.com"}}},
	}, assertionClaims(t))

	if !authorized {
		t.Fatal("should authorize a listed email")
	}
}

func TestArrayClaimAssertions(t *testing.T) {
	authorized := isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "groups", AllOf: []string{"analysts", "chat-users"}}},
	}, assertionClaims(t))

	if !authorized {
		t.Fatal("should authorize since all required groups are present")
	}

	authorized = isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "groups", AllOf: []string{"analysts", "owners"}}},
	}, assertionClaims(t))

	if authorized {
		t.Fatal("should not authorize since one required group is missing")
	}

	authorized = isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{{Name: "groups", AnyOf: []string{"owners", "admins"}}},
	}, assertionClaims(t))

	if !authorized {
		t.Fatal("should authorize since one of the groups matches")
	}
}

func TestCombinedAssertions(t *testing.T) {
	authorized := isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{
			{Name: "hd", AnyOf: []string{"example.com"}},
			{Name: "groups", AllOf: []string{"chat-users"}},
		},
	}, assertionClaims(t))

	if !authorized {
		t.Fatal("should authorize when every assertion holds")
	}

	authorized = isAuthorized(assertionLogger(), &AuthorizationConfig{
		AssertClaims: []ClaimAssertion{
			{Name: "hd", AnyOf: []string{"example.com"}},
			{Name: "groups", AllOf: []string{"owners"}},
		},
	}, assertionClaims(t))

	if authorized {
		t.Fatal("should not authorize when any assertion fails")
	}
}
