package idpx

import (
	"net/http"

	"github.com/secufusion/iamplane/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("IDP")

var (
	CodeConflict        = ErrRegistry.Register("IDP_CONFLICT", errx.TypeConflict, http.StatusConflict, "Object already exists on the identity provider")
	CodeNotFound        = ErrRegistry.Register("IDP_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Object not found on the identity provider")
	CodeOperationFailed = ErrRegistry.Register("IDP_OPERATION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Identity provider operation failed")
	CodeSessionFailed   = ErrRegistry.Register("IDP_SESSION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Could not open an administrative session on the identity provider")
)

func ErrConflict(op string) *errx.Error {
	return ErrRegistry.New(CodeConflict).WithDetail("op", op)
}

func ErrNotFound(op string) *errx.Error {
	return ErrRegistry.New(CodeNotFound).WithDetail("op", op)
}

func ErrOperationFailed(op string, cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeOperationFailed, cause).WithDetail("op", op)
}

func ErrSessionFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeSessionFailed, cause)
}

func IsConflict(err error) bool { return errx.HasCode(err, CodeConflict) }
func IsNotFound(err error) bool { return errx.HasCode(err, CodeNotFound) }

// IsRetriable reports whether err is a remote fault a later attempt may clear.
func IsRetriable(err error) bool {
	return errx.HasCode(err, CodeOperationFailed) || errx.HasCode(err, CodeSessionFailed)
}
