package identity

// Provider error codes.
const (
	CodeEmailAlreadyInUse        = "auth/email-already-in-use"
	CodeUserNotFound             = "auth/user-not-found"
	CodeWrongPassword            = "auth/wrong-password"
	CodeInvalidCredential        = "auth/invalid-credential"
	CodeInvalidEmail             = "auth/invalid-email"
	CodeTooManyRequests          = "auth/too-many-requests"
	CodeWeakPassword             = "auth/weak-password"
	CodeAccountExistsWithOtherID = "auth/account-exists-with-different-credential"
	CodeTokenExpired             = "auth/user-token-expired"
)

// Error is a provider failure tagged with a provider code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message + " (" + e.Code + ")"
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ProviderCode exposes the code to callers that classify provider errors.
func (e *Error) ProviderCode() string {
	return e.Code
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
