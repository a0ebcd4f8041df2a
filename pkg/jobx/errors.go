package jobx

import (
	"net/http"

	"github.com/secufusion/iamplane/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("JOBX")

var (
	CodeJobNotFound    = ErrRegistry.Register("JOB_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Job not found")
	CodeEnqueueFailed  = ErrRegistry.Register("ENQUEUE_FAILED", errx.TypeExternal, http.StatusInternalServerError, "Failed to enqueue job")
	CodeBackendFailed  = ErrRegistry.Register("BACKEND_FAILED", errx.TypeExternal, http.StatusInternalServerError, "Job backend operation failed")
	CodeInvalidJob     = ErrRegistry.Register("INVALID_JOB", errx.TypeValidation, http.StatusBadRequest, "Invalid job definition")
	CodeInvalidPayload = ErrRegistry.Register("INVALID_PAYLOAD", errx.TypeValidation, http.StatusBadRequest, "Job payload could not be decoded")
	CodeAlreadyRunning = ErrRegistry.Register("ALREADY_RUNNING", errx.TypeConflict, http.StatusConflict, "Worker is already running")
)

func ErrJobNotFound(id string) *errx.Error {
	return ErrRegistry.New(CodeJobNotFound).WithDetail("job_id", id)
}

func ErrBackend(op string, cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeBackendFailed, cause).WithDetail("op", op)
}
