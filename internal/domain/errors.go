package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizSessionNotFound is returned when a quiz session id is unknown or expired.
	ErrQuizSessionNotFound = errors.New("quiz session not found")
	// ErrStepNotFound indicates an answer referenced a step the quiz does not define.
	ErrStepNotFound = errors.New("quiz step not found")
	// ErrProfileNotFound is returned by profile stores when no document exists.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrIdentityNotFound is returned by credential stores for unknown identities.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityExists is returned by credential stores when the email is taken.
	ErrIdentityExists = errors.New("identity already exists")
)

// AuthErrorKind is the closed set of failures the auth façade surfaces.
type AuthErrorKind string

const (
	KindDuplicateAccount          AuthErrorKind = "duplicate_account"
	KindInvalidCredentials        AuthErrorKind = "invalid_credentials"
	KindInvalidEmailFormat        AuthErrorKind = "invalid_email_format"
	KindRateLimited               AuthErrorKind = "rate_limited"
	KindProfileMissing            AuthErrorKind = "profile_missing"
	KindProfileWriteInconsistency AuthErrorKind = "profile_write_inconsistency"
	KindUnknown                   AuthErrorKind = "unknown"
)

// AuthError is an auth failure classified into the closed taxonomy.
// errors.Is matches on Kind, so callers compare against the exported sentinels.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	if t, ok := target.(*AuthError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NewAuthError builds a classified error wrapping cause.
func NewAuthError(kind AuthErrorKind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Cause: cause}
}

var (
	ErrDuplicateAccount   = &AuthError{Kind: KindDuplicateAccount, Message: "an account with this email already exists, please sign in instead"}
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrInvalidEmailFormat = &AuthError{Kind: KindInvalidEmailFormat, Message: "invalid email address format"}
	ErrRateLimited        = &AuthError{Kind: KindRateLimited, Message: "too many failed attempts, please try again later"}
	ErrProfileMissing     = &AuthError{Kind: KindProfileMissing, Message: "please complete your profile setup first"}
	// ErrProfileWriteInconsistency is logged and recovered by the façade, never returned.
	ErrProfileWriteInconsistency = &AuthError{Kind: KindProfileWriteInconsistency, Message: "identity has no profile document"}
	ErrUnknown                   = &AuthError{Kind: KindUnknown, Message: "an error occurred during authentication"}
)

// KindOf returns the taxonomy kind of err, or KindUnknown.
func KindOf(err error) AuthErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}
