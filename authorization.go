package googleauth

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spyzhov/ajson"

	"github.com/datachat-app/google-auth/logging"
)

// isAuthorized evaluates the configured claim assertions against the
// verified id-token claims. With no assertions configured everyone who
// authenticates is authorized. Typical policies for a Google-backed app are
// pinning the hd claim to the company domain or listing permitted emails.
func isAuthorized(logger *logging.Logger, authorization *AuthorizationConfig, claims map[string]interface{}) bool {
	if authorization == nil || len(authorization.AssertClaims) == 0 {
		return true
	}

	parsed, err := json.Marshal(claims)
	if err != nil {
		logger.Log(logging.LevelWarn, "Error whilst marshalling claims object: %s", err.Error())
		return false
	}

	for _, assertion := range authorization.AssertClaims {
		if !assertionHolds(logger, parsed, &assertion) {
			logAvailableClaims(logger, claims)
			return false
		}
	}

	return true
}

func assertionHolds(logger *logging.Logger, parsedClaims []byte, assertion *ClaimAssertion) bool {
	nodes, err := ajson.JSONPath(parsedClaims, fmt.Sprintf("$.%s", assertion.Name))
	if err != nil {
		logger.Log(logging.LevelWarn, "Error whilst parsing path for claim %s: %s", assertion.Name, err.Error())
		return false
	}
	if len(nodes) == 0 {
		logger.Log(logging.LevelWarn, "Unauthorized. Unable to find claim %s in token claims.", assertion.Name)
		return false
	}

	// Bare assertion: the claim only has to exist.
	if len(assertion.AllOf) == 0 && len(assertion.AnyOf) == 0 {
		logger.Log(logging.LevelDebug, "Authorized claim %s: claim exists", assertion.Name)
		return true
	}

	for _, node := range nodes {
		unpacked, err := node.Unpack()
		if err != nil {
			logger.Log(logging.LevelError, "Error whilst unpacking json node: %s", err.Error())
			continue
		}

		values := stringValues(unpacked)

		if len(assertion.AllOf) > 0 && !containsAll(values, assertion.AllOf) {
			continue
		}
		if len(assertion.AnyOf) > 0 && !containsAny(values, assertion.AnyOf) {
			continue
		}

		logger.Log(logging.LevelDebug, "Authorized claim %s", assertion.Name)
		return true
	}

	logger.Log(logging.LevelWarn, "Unauthorized. Claim %s does not satisfy its assertion.", assertion.Name)
	return false
}

// stringValues flattens a claim value into comparable strings. A scalar
// claim compares as a single value; an array claim as its elements.
func stringValues(value interface{}) []string {
	if list, ok := value.([]interface{}); ok {
		mapped := make([]string, len(list))
		for i, raw := range list {
			mapped[i] = fmt.Sprintf("%v", raw)
		}
		return mapped
	}
	return []string{fmt.Sprintf("%v", value)}
}

func containsAll(values []string, wanted []string) bool {
	for _, w := range wanted {
		if !slices.Contains(values, w) {
			return false
		}
	}
	return true
}

func containsAny(values []string, wanted []string) bool {
	for _, w := range wanted {
		if slices.Contains(values, w) {
			return true
		}
	}
	return false
}

func logAvailableClaims(logger *logging.Logger, claims map[string]interface{}) {
	logger.Log(logging.LevelDebug, "Available claims are:")
	for key, val := range claims {
		logger.Log(logging.LevelDebug, "  %v = %v", key, val)
	}
}
