package session

import "errors"

// Sentinel errors (stable for errors.Is and for mapping to API status codes).
var (
	// ErrInvariant is returned when a Session breaks the token/role
	// correspondence (token without a role, or a role without a token).
	ErrInvariant = errors.New("session invariant violated")

	// ErrCorruptRecord is returned by Store.Load when the persisted record is
	// partial or inconsistent. Callers treat it as a logged-out session; it is
	// never surfaced to the user.
	ErrCorruptRecord = errors.New("corrupt persisted session")

	// ErrLoginInFlight is returned when a credential attempt is submitted
	// while a previous attempt has not completed.
	ErrLoginInFlight = errors.New("credential attempt already in flight")

	// ErrAlreadyAuthenticated is returned when a credential attempt is
	// submitted while an identity is already established.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrStaleAttempt is returned to a credential attempt whose result arrived
	// after the machine moved on (logout or federated callback in between).
	// The late result is discarded without touching state.
	ErrStaleAttempt = errors.New("stale credential attempt")

	// ErrInvalidCredentials means the remote auth service rejected the
	// credentials. User-correctable; carries a displayable message when
	// wrapped in an AuthError.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetworkFailure means the exchange could not complete: transport
	// failure, malformed response, or a server-side error. Transient; no
	// automatic retry is performed, repeated silent retries against a login
	// endpoint risk lockouts.
	ErrNetworkFailure = errors.New("credential exchange failed")
)

// AuthError is a credential-exchange failure with a message fit for display.
// Kind is one of ErrInvalidCredentials or ErrNetworkFailure.
type AuthError struct {
	Kind    error
	Message string
}

func (e AuthError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e AuthError) Unwrap() error { return e.Kind }

// DisplayMessage extracts the user-displayable message from an exchange
// error, with a generic retry fallback for transport failures.
func DisplayMessage(err error) string {
	var ae AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return "Login failed"
	}
	return "Network error. Please try again."
}
