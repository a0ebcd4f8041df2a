package errx

// Type is the broad category of an error; it picks the default HTTP status.
type Type string

const (
	TypeInternal      Type = "INTERNAL"
	TypeValidation    Type = "VALIDATION"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeBusiness      Type = "BUSINESS"
	TypeExternal      Type = "EXTERNAL"
)

func (t Type) String() string {
	return string(t)
}

// Internal creates an uncoded internal error.
func Internal(message string) *Error { return New(message, TypeInternal) }

// Validation creates an uncoded validation error.
func Validation(message string) *Error { return New(message, TypeValidation) }

// NotFound creates an uncoded not-found error.
func NotFound(message string) *Error { return New(message, TypeNotFound) }

// Unauthorized creates an uncoded authorization error.
func Unauthorized(message string) *Error { return New(message, TypeAuthorization) }

// Conflict creates an uncoded conflict error.
func Conflict(message string) *Error { return New(message, TypeConflict) }

// External creates an uncoded error for a failing remote dependency.
func External(message string) *Error { return New(message, TypeExternal) }
