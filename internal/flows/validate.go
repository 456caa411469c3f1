package flows

import (
	"strings"
	"unicode/utf8"
)

const (
	msgLoginMissingFields = "Email and password are required"
	msgInvalidCredentials = "Invalid email or password"
	msgLoginSuccess       = "Login successful"

	msgAllFieldsRequired  = "All fields required"
	msgPasswordMismatch   = "Passwords do not match"
	msgPasswordTooShort   = "Password must be 6+ characters"
	msgInvalidEmailFormat = "Invalid email format"
	msgEmailRegistered    = "Email already registered"
	msgRegisterSuccess    = "Account created successfully!"

	msgServerError = "Server error"

	// MinPasswordLength is counted in characters, not bytes.
	MinPasswordLength = 6

	maskedPassword = "••••••••"
)

// NormalizeEmail trims surrounding whitespace. Case is preserved because
// emails are matched exactly as stored.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// validateLogin returns the failure message, or "" when input is usable.
func validateLogin(email, password string) string {
	if email == "" || password == "" {
		return msgLoginMissingFields
	}
	return ""
}

// validateRegister reports only the first violated rule, in priority order:
// missing fields, confirmation mismatch, length, email format.
func validateRegister(name, email, password, confirm string) string {
	switch {
	case name == "" || email == "" || password == "" || confirm == "":
		return msgAllFieldsRequired
	case password != confirm:
		return msgPasswordMismatch
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return msgPasswordTooShort
	case !strings.Contains(email, "@"):
		return msgInvalidEmailFormat
	default:
		return ""
	}
}
