package errx

import (
	"fmt"
	"sync"
)

// ErrorCode is a registered error template.
type ErrorCode struct {
	Code       string
	Number     int
	Module     string
	Type       Type
	HTTPStatus int
	Message    string
}

// Registry manages the error codes of one module.
type Registry struct {
	module string
	codes  map[string]*ErrorCode
	mu     sync.RWMutex
}

// NewRegistry creates a new error registry for a module
func NewRegistry(module string) *Registry {
	return &Registry{
		module: module,
		codes:  make(map[string]*ErrorCode),
	}
}

// Register registers a code without a public number.
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) *ErrorCode {
	return r.RegisterNumbered(code, 0, errType, httpStatus, message)
}

// RegisterNumbered registers a code with the numeric identifier clients see
// as errorNumber. Numbers may repeat across codes; codes may not.
func (r *Registry) RegisterNumbered(code string, number int, errType Type, httpStatus int, message string) *ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.codes[code]; dup {
		panic(fmt.Sprintf("errx: code %s registered twice in %s", code, r.module))
	}

	ec := &ErrorCode{
		Code:       code,
		Number:     number,
		Module:     r.module,
		Type:       errType,
		HTTPStatus: httpStatus,
		Message:    message,
	}
	r.codes[code] = ec
	return ec
}

// New creates a new error from a registered code
func (r *Registry) New(code *ErrorCode) *Error {
	return r.NewWithMessage(code, code.Message)
}

// NewWithMessage creates a new error with a custom message
func (r *Registry) NewWithMessage(code *ErrorCode, message string) *Error {
	return &Error{
		Code:       code.Code,
		Number:     code.Number,
		Module:     code.Module,
		Message:    message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
		Details:    make(map[string]interface{}),
	}
}

// NewWithCause creates a new error from a code with an underlying cause
func (r *Registry) NewWithCause(code *ErrorCode, cause error) *Error {
	e := r.New(code)
	e.Err = cause
	return e
}

// Get retrieves a registered error code
func (r *Registry) Get(code string) (*ErrorCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ec, ok := r.codes[code]
	return ec, ok
}

// Codes returns a copy of all registered codes
func (r *Registry) Codes() map[string]*ErrorCode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make(map[string]*ErrorCode, len(r.codes))
	for k, v := range r.codes {
		codes[k] = v
	}
	return codes
}
