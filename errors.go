package googleauth

import "fmt"

// AuthErrorKind tells the hosting application how to react to a failed
// callback: show a denied page, restart the login flow, or report a
// transient provider problem.
type AuthErrorKind string

const (
	// AuthErrorDenied: the user refused consent or the provider reported an
	// error on the authorization request. Not retried.
	AuthErrorDenied AuthErrorKind = "denied"

	// AuthErrorInvalidState: the state token is missing, unknown, already
	// consumed, or expired. The flow must be restarted from the beginning.
	AuthErrorInvalidState AuthErrorKind = "invalid_state"

	// AuthErrorMissingCode: the callback carried no authorization code.
	AuthErrorMissingCode AuthErrorKind = "missing_code"

	// AuthErrorExchangeFailed: the token-endpoint call failed. The only
	// plausibly transient kind, but authorization codes are single-use, so
	// a retry needs a fresh authorization request anyway.
	AuthErrorExchangeFailed AuthErrorKind = "exchange_failed"

	// AuthErrorInvalidToken: the id-token failed validation or lacks the
	// required claims.
	AuthErrorInvalidToken AuthErrorKind = "invalid_token"
)

type AuthError struct {
	Kind   AuthErrorKind
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth error (%s)", e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func authError(kind AuthErrorKind, reason string, err error) *AuthError {
	return &AuthError{Kind: kind, Reason: reason, Err: err}
}
