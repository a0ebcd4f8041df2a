package user

import (
	"net/http"

	"github.com/secufusion/iamplane/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeRemoteCreateFailed = ErrRegistry.RegisterNumbered("KC_USER_CREATION_FAILED", 3001, errx.TypeExternal, http.StatusBadRequest, "Failed to create user in the identity provider.")
	CodeCreateFailed       = ErrRegistry.RegisterNumbered("USER_CREATION_FAILED", 3002, errx.TypeExternal, http.StatusBadRequest, "Unexpected error while creating user.")
	CodeUpdateFailed       = ErrRegistry.RegisterNumbered("USER_UPDATE_FAILED", 3003, errx.TypeExternal, http.StatusBadRequest, "Unexpected error updating user.")
	CodeUserNotFound       = ErrRegistry.RegisterNumbered("USER_NOT_FOUND", 3100, errx.TypeNotFound, http.StatusNotFound, "User not found.")
	CodeEmailExists        = ErrRegistry.RegisterNumbered("EMAIL_EXISTS", 3101, errx.TypeValidation, http.StatusBadRequest, "Email already exists.")
	CodeUserNameExists     = ErrRegistry.RegisterNumbered("USERNAME_EXISTS", 3102, errx.TypeValidation, http.StatusBadRequest, "Username already exists.")
	CodePhoneExists        = ErrRegistry.RegisterNumbered("PHONE_EXISTS", 3103, errx.TypeValidation, http.StatusBadRequest, "Phone number already exists.")
	CodeRemoteExists       = ErrRegistry.RegisterNumbered("KC_USER_EXISTS", 3104, errx.TypeConflict, http.StatusBadRequest, "User already exists in the tenant realm.")
	CodeCheckParameter     = ErrRegistry.RegisterNumbered("CHECK_PARAMETER_REQUIRED", 4000, errx.TypeValidation, http.StatusBadRequest, "At least one parameter must be provided.")
)

func ErrUserNotFound() *errx.Error   { return ErrRegistry.New(CodeUserNotFound) }
func ErrEmailExists() *errx.Error    { return ErrRegistry.New(CodeEmailExists) }
func ErrUserNameExists() *errx.Error { return ErrRegistry.New(CodeUserNameExists) }
func ErrPhoneExists() *errx.Error    { return ErrRegistry.New(CodePhoneExists) }
func ErrCheckParameter() *errx.Error { return ErrRegistry.New(CodeCheckParameter) }
func ErrRemoteExists() *errx.Error   { return ErrRegistry.New(CodeRemoteExists) }

func ErrRemoteCreateFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeRemoteCreateFailed, cause)
}

func ErrCreateFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeCreateFailed, cause)
}

func ErrUpdateFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUpdateFailed, cause)
}
