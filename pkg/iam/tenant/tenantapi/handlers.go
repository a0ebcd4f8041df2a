package tenantapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantsrv"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/validatorx"
)

// TenantHandlers exposes the tenant service over HTTP.
type TenantHandlers struct {
	service *tenantsrv.TenantService
}

func NewTenantHandlers(service *tenantsrv.TenantService) *TenantHandlers {
	return &TenantHandlers{service: service}
}

// RegisterRoutes mounts the tenant endpoints under /tenants. Static paths
// are registered before /:id so they are never captured as an id.
func (h *TenantHandlers) RegisterRoutes(router fiber.Router) {
	tenants := router.Group("/tenants")

	tenants.Post("/", h.CreateTenant)
	tenants.Get("/", h.ListTenants)
	tenants.Get("/id", h.GetTenant)
	tenants.Get("/types", h.TenantTypes)
	tenants.Get("/billing", h.BillingTypes)
	tenants.Get("/check", h.Check)

	tenants.Put("/:id", h.UpdateTenant)
	tenants.Delete("/:id", h.DeleteTenant)
	tenants.Post("/:id/resume", h.ResumeTenant)
}

// CreateTenant provisions a tenant, or resumes a half-built one with the
// same name.
// POST /tenants
func (h *TenantHandlers) CreateTenant(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return err
	}

	logx.WithContext(c.UserContext()).WithField("tenant_name", req.TenantName).Info("Request to create tenant")

	resp, err := h.service.CreateTenant(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GET /tenants/id?id=
func (h *TenantHandlers) GetTenant(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		return validatorx.ErrRegistry.New(validatorx.CodeInvalidRequest).WithDetail("id", "required")
	}

	resp, err := h.service.GetTenant(c.UserContext(), kernel.TenantID(id))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GET /tenants
func (h *TenantHandlers) ListTenants(c *fiber.Ctx) error {
	nodes, err := h.service.ListTenants(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nodes)
}

// PUT /tenants/:id
func (h *TenantHandlers) UpdateTenant(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return err
	}

	resp, err := h.service.UpdateTenant(c.UserContext(), kernel.TenantID(c.Params("id")), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// DELETE /tenants/:id
func (h *TenantHandlers) DeleteTenant(c *fiber.Ctx) error {
	if err := h.service.DeleteTenant(c.UserContext(), kernel.TenantID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResumeTenant drives a stored tenant forward from its recorded status.
// POST /tenants/:id/resume
func (h *TenantHandlers) ResumeTenant(c *fiber.Ctx) error {
	resp, err := h.service.ResumeTenant(c.UserContext(), kernel.TenantID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GET /tenants/types
func (h *TenantHandlers) TenantTypes(c *fiber.Ctx) error {
	types, err := h.service.TenantTypes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(types)
}

// GET /tenants/billing
func (h *TenantHandlers) BillingTypes(c *fiber.Ctx) error {
	return c.JSON(h.service.BillingTypes())
}

// Check answers with a plain sentence saying whether the value is free.
// GET /tenants/check?tenantName=|domainName=|phoneNumber=|tenantEmail=
func (h *TenantHandlers) Check(c *fiber.Ctx) error {
	var req tenant.CheckRequest
	if err := c.QueryParser(&req); err != nil {
		return validatorx.ErrRegistry.NewWithCause(validatorx.CodeInvalidRequest, err)
	}

	msg, err := h.service.Check(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.SendString(msg)
}

func parseRequest(c *fiber.Ctx) (tenant.CreateTenantRequest, error) {
	var req tenant.CreateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return req, validatorx.ErrRegistry.NewWithCause(validatorx.CodeInvalidRequest, err).
			WithDetail("body", "malformed")
	}
	if err := validatorx.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}
