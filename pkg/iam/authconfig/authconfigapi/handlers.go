package authconfigapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfigsrv"
)

type AuthConfigHandlers struct {
	service *authconfigsrv.AuthConfigService
}

func NewAuthConfigHandlers(service *authconfigsrv.AuthConfigService) *AuthConfigHandlers {
	return &AuthConfigHandlers{service: service}
}

// RegisterRoutes mounts the public resolver. Login pages call it before the
// user has a token.
func (h *AuthConfigHandlers) RegisterRoutes(router fiber.Router) {
	router.Get("/tenant-config", h.TenantConfig)
}

// GET /tenant-config?host=
func (h *AuthConfigHandlers) TenantConfig(c *fiber.Ctx) error {
	details, err := h.service.Resolve(c.UserContext(), c.Query("host"))
	if err != nil {
		return err
	}
	return c.JSON(details)
}
