package flowAuth

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is wrapped by every input validation failure. The wrapped
	// message is the first violated rule.
	ErrValidation = errors.New("invalid request")
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when a registration email is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrStoreUnavailable is joined with the cause of any credential store
	// failure.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrSessionCreationFailed is joined with the cause when a session cannot be
	// issued after a valid password.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrEngineNotReady is returned by a nil or unwired engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// StatusCode maps a pipeline error to its HTTP status. A nil error maps to
// 200.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SafeMessage returns text that can be shown to a client. Infrastructure
// causes are never included.
func SafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		if msg := validationMessage(err); msg != "" {
			return msg
		}
		return "Invalid request"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrAccountExists):
		return "Email already registered"
	default:
		return "Server error"
	}
}

// validationMessage extracts the rule text from "<ErrValidation>: <rule>".
func validationMessage(err error) string {
	prefix := ErrValidation.Error() + ": "
	msg := err.Error()
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return ""
}
