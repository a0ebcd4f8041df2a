package errx

import (
	"errors"
	"net/http"
	"time"
)

// Fallback codes used when an error carries no code of its own.
var (
	commonRegistry = NewRegistry("COMMON")

	CodeResourceNotFound = commonRegistry.RegisterNumbered("RESOURCE_NOT_FOUND", 4040, TypeNotFound, http.StatusNotFound, "Resource not found")
	CodeInternal         = commonRegistry.RegisterNumbered("INTERNAL_SERVER_ERROR", 5000, TypeInternal, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
)

// ResourceNotFound builds a RESOURCE_NOT_FOUND error with a specific message.
func ResourceNotFound(message string) *Error {
	return commonRegistry.NewWithMessage(CodeResourceNotFound, message)
}

// HTTPErrorResponse is the body written for every failed request.
type HTTPErrorResponse struct {
	Success     bool                   `json:"success"`
	ErrorCode   string                 `json:"errorCode"`
	ErrorNumber int                    `json:"errorNumber"`
	Message     string                 `json:"message"`
	Timestamp   string                 `json:"timestamp"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// ToHTTPResponse converts an Error to the wire body.
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	resp := HTTPErrorResponse{
		Success:     false,
		ErrorCode:   e.Code,
		ErrorNumber: e.Number,
		Message:     e.Message,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(e.Details) > 0 {
		resp.Details = e.Details
	}
	return resp
}

// Status returns the HTTP status for e, defaulting to 500.
func (e *Error) Status() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// FromError finds the coded error in err's chain. Uncoded errors become
// INTERNAL_SERVER_ERROR with the generic message; the cause is kept for logs.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return commonRegistry.NewWithCause(CodeInternal, err)
}
