package tenant

import (
	"net/http"

	"github.com/secufusion/iamplane/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

// Numbers are part of the public contract and repeat across codes on purpose.
var ErrRegistry = errx.NewRegistry("TENANT")

var (
	// Validation, raised before any remote side effect
	CodeNameRequired           = ErrRegistry.RegisterNumbered("ORGANIZATION_NAME_REQUIRED", 1000, errx.TypeValidation, http.StatusBadRequest, "Organization name is required.")
	CodeNameExists             = ErrRegistry.RegisterNumbered("ORGANIZATION_NAME_ALREADY_EXISTS", 1001, errx.TypeValidation, http.StatusBadRequest, "Organization name already exists.")
	CodeTenantExists           = ErrRegistry.RegisterNumbered("TENANT_ALREADY_EXISTS", 1001, errx.TypeValidation, http.StatusBadRequest, "Tenant already exists.")
	CodeDomainExists           = ErrRegistry.RegisterNumbered("DOMAIN_ALREADY_EXISTS", 1002, errx.TypeValidation, http.StatusBadRequest, "This domain is already registered.")
	CodeAdminUsernameExists    = ErrRegistry.RegisterNumbered("ADMIN_USERNAME_ALREADY_EXISTS", 1003, errx.TypeValidation, http.StatusBadRequest, "Admin Username already taken.")
	CodeAdminEmailExists       = ErrRegistry.RegisterNumbered("ADMIN_EMAIL_ALREADY_EXISTS", 1004, errx.TypeValidation, http.StatusBadRequest, "Admin Email already exists.")
	CodeRealmExists            = ErrRegistry.RegisterNumbered("ORGANIZATION_REALM_ALREADY_EXISTS", 1005, errx.TypeValidation, http.StatusBadRequest, "Organization Realm already exists.")
	CodeAdminUsernameRequired  = ErrRegistry.RegisterNumbered("ADMIN_USERNAME_REQUIRED", 1006, errx.TypeValidation, http.StatusBadRequest, "Admin username is required.")
	CodeDomainRequired         = ErrRegistry.RegisterNumbered("INVALID_DOMAIN", 1007, errx.TypeValidation, http.StatusBadRequest, "A valid domain must be provided.")
	CodeAdminEmailRequired     = ErrRegistry.RegisterNumbered("ADMIN_EMAIL_REQUIRED", 1007, errx.TypeValidation, http.StatusBadRequest, "Admin email is required.")
	CodePhoneRequired          = ErrRegistry.RegisterNumbered("ORGANIZATION_PHONE_NUMBER_REQUIRED", 1008, errx.TypeValidation, http.StatusBadRequest, "Organization phone number is required.")
	CodePhoneExists            = ErrRegistry.RegisterNumbered("ORGANIZATION_PHONE_NUMBER_ALREADY_EXISTS", 1009, errx.TypeValidation, http.StatusBadRequest, "Organization Phone number already exists.")
	CodeEmailRequired          = ErrRegistry.RegisterNumbered("ORGANIZATION_EMAIL_REQUIRED", 1011, errx.TypeValidation, http.StatusBadRequest, "Organization email is required.")
	CodeEmailExists            = ErrRegistry.RegisterNumbered("ORGANIZATION_EMAIL_ALREADY_EXISTS", 1012, errx.TypeValidation, http.StatusBadRequest, "Organization email already exists.")
	CodeAdminPhoneExists       = ErrRegistry.RegisterNumbered("ADMIN_PHONE_NUMBER_ALREADY_EXISTS", 1016, errx.TypeValidation, http.StatusBadRequest, "Admin Phone number already exists.")
	CodeAdminPhoneRequired     = ErrRegistry.RegisterNumbered("ADMIN_PHONE_NUMBER_REQUIRED", 1017, errx.TypeValidation, http.StatusBadRequest, "Admin phone number is required.")
	CodeUsernameGenFailed      = ErrRegistry.RegisterNumbered("USERNAME_GENERATION_FAILED", 1020, errx.TypeBusiness, http.StatusBadRequest, "Unable to generate unique username.")
	CodeNameImmutable          = ErrRegistry.RegisterNumbered("TENANT_NAME_IMMUTABLE", 1021, errx.TypeValidation, http.StatusBadRequest, "Tenant name cannot be changed.")
	CodeMissingCheckParameter  = ErrRegistry.RegisterNumbered("CHECK_PARAMETER_REQUIRED", 4000, errx.TypeValidation, http.StatusBadRequest, "At least one parameter must be provided.")
	CodeTenantAlreadyActive    = ErrRegistry.RegisterNumbered("TENANT_ALREADY_ACTIVE", 1015, errx.TypeBusiness, http.StatusBadRequest, "Tenant already active.")
	CodeTenantNotFound         = ErrRegistry.RegisterNumbered("TENANT_NOT_FOUND", 1014, errx.TypeNotFound, http.StatusBadRequest, "Tenant not found.")
	CodeUnknownState           = ErrRegistry.RegisterNumbered("UNKNOWN_STATE", 1013, errx.TypeBusiness, http.StatusBadRequest, "Invalid provisioning state.")
	CodeStatusConflict         = ErrRegistry.RegisterNumbered("TENANT_STATUS_CONFLICT", 1022, errx.TypeConflict, http.StatusConflict, "Tenant status changed concurrently.")
	CodeInternal               = ErrRegistry.RegisterNumbered("INTERNAL_ERROR", 1013, errx.TypeInternal, http.StatusBadRequest, "Unexpected error during tenant setup.")
	CodeRealmCreationFailed    = ErrRegistry.RegisterNumbered("REALM_CREATION_FAILED", 1006, errx.TypeExternal, http.StatusBadRequest, "Unable to create tenant environment.")
	CodeClientCreationFailed   = ErrRegistry.RegisterNumbered("CLIENT_CREATION_FAILED", 1008, errx.TypeExternal, http.StatusBadRequest, "Unable to configure login access.")
	CodeUserCreationFailed     = ErrRegistry.RegisterNumbered("USER_CREATION_FAILED", 1010, errx.TypeExternal, http.StatusBadRequest, "Unable to create tenant admin user.")
	CodeUserConfigFailed       = ErrRegistry.RegisterNumbered("USER_CONFIG_FAILED", 1010, errx.TypeExternal, http.StatusBadRequest, "Unable to configure tenant admin user.")
	CodeEmailSendFailed        = ErrRegistry.RegisterNumbered("EMAIL_SEND_FAILED", 1011, errx.TypeExternal, http.StatusBadRequest, "Unable to send welcome email.")
	CodeAdminUserMissing       = ErrRegistry.RegisterNumbered("ADMIN_USER_NOT_FOUND", 1014, errx.TypeNotFound, http.StatusBadRequest, "Tenant admin user not found.")
	CodeClientUpdateFailed     = ErrRegistry.Register("CLIENT_UPDATE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Unable to update login redirects.")
	CodeTenantTypesUnavailable = ErrRegistry.Register("TENANT_TYPES_UNAVAILABLE", errx.TypeInternal, http.StatusInternalServerError, "Unable to load tenant types.")
)

// Helper functions

func ErrNameRequired() *errx.Error          { return ErrRegistry.New(CodeNameRequired) }
func ErrNameExists() *errx.Error            { return ErrRegistry.New(CodeNameExists) }
func ErrTenantExists() *errx.Error          { return ErrRegistry.New(CodeTenantExists) }
func ErrDomainExists() *errx.Error          { return ErrRegistry.New(CodeDomainExists) }
func ErrDomainRequired() *errx.Error        { return ErrRegistry.New(CodeDomainRequired) }
func ErrPhoneRequired() *errx.Error         { return ErrRegistry.New(CodePhoneRequired) }
func ErrPhoneExists() *errx.Error           { return ErrRegistry.New(CodePhoneExists) }
func ErrEmailRequired() *errx.Error         { return ErrRegistry.New(CodeEmailRequired) }
func ErrEmailExists() *errx.Error           { return ErrRegistry.New(CodeEmailExists) }
func ErrAdminEmailRequired() *errx.Error    { return ErrRegistry.New(CodeAdminEmailRequired) }
func ErrAdminEmailExists() *errx.Error      { return ErrRegistry.New(CodeAdminEmailExists) }
func ErrAdminPhoneRequired() *errx.Error    { return ErrRegistry.New(CodeAdminPhoneRequired) }
func ErrAdminPhoneExists() *errx.Error      { return ErrRegistry.New(CodeAdminPhoneExists) }
func ErrAdminUsernameExists() *errx.Error   { return ErrRegistry.New(CodeAdminUsernameExists) }
func ErrRealmExists() *errx.Error           { return ErrRegistry.New(CodeRealmExists) }
func ErrUsernameGenFailed() *errx.Error     { return ErrRegistry.New(CodeUsernameGenFailed) }
func ErrNameImmutable() *errx.Error         { return ErrRegistry.New(CodeNameImmutable) }
func ErrMissingCheckParameter() *errx.Error { return ErrRegistry.New(CodeMissingCheckParameter) }
func ErrTenantAlreadyActive() *errx.Error   { return ErrRegistry.New(CodeTenantAlreadyActive) }
func ErrUnknownState(s Status) *errx.Error {
	return ErrRegistry.New(CodeUnknownState).WithDetail("status", string(s))
}

func ErrTenantNotFound() *errx.Error {
	return ErrRegistry.New(CodeTenantNotFound)
}

func ErrStatusConflict(from, to Status) *errx.Error {
	return ErrRegistry.New(CodeStatusConflict).WithDetail("from", string(from)).WithDetail("to", string(to))
}

func ErrAdminUserMissing() *errx.Error { return ErrRegistry.New(CodeAdminUserMissing) }

func ErrInternal(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeInternal, cause)
}

func ErrRealmCreationFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeRealmCreationFailed, cause)
}

func ErrClientCreationFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeClientCreationFailed, cause)
}

func ErrClientUpdateFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeClientUpdateFailed, cause)
}

func ErrUserCreationFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUserCreationFailed, cause)
}

func ErrUserConfigFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUserConfigFailed, cause)
}

func ErrEmailSendFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeEmailSendFailed, cause)
}

// IsRemoteStepFailure reports whether err is one of the step failures a
// later resume can recover from.
func IsRemoteStepFailure(err error) bool {
	return errx.HasCode(err, CodeRealmCreationFailed) ||
		errx.HasCode(err, CodeClientCreationFailed) ||
		errx.HasCode(err, CodeUserCreationFailed) ||
		errx.HasCode(err, CodeUserConfigFailed) ||
		errx.HasCode(err, CodeEmailSendFailed)
}
