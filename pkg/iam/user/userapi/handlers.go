package userapi

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/secufusion/iamplane/pkg/iam"
	"github.com/secufusion/iamplane/pkg/iam/auth"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/iam/user/usersrv"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/validatorx"
)

type UserHandlers struct {
	service *usersrv.UserService
}

func NewUserHandlers(service *usersrv.UserService) *UserHandlers {
	return &UserHandlers{service: service}
}

// RegisterRoutes mounts /users. requireAuth guards the endpoints that echo
// the caller; manage, when given, guards every write. Static paths are
// registered before /:userId so they are never captured as an id.
func (h *UserHandlers) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler, manage ...fiber.Handler) {
	users := router.Group("/users")
	guarded := func(next fiber.Handler) []fiber.Handler {
		return append(slices.Clip(manage), next)
	}

	users.Get("/check", h.Check)
	users.Get("/custom-response", requireAuth, h.CustomResponse)
	users.Get("/tenant/:tenantId", h.ListByTenant)
	users.Get("/", h.ListUsers)

	users.Post("/:tenantId", guarded(h.CreateUser)...)
	users.Get("/:userId", h.GetUser)
	users.Put("/:userId", guarded(h.UpdateUser)...)
	users.Delete("/:userId", guarded(h.DeleteUser)...)
}

// GET /users/check?userName=|phoneNumber=|email=
func (h *UserHandlers) Check(c *fiber.Ctx) error {
	var req user.CheckRequest
	if err := c.QueryParser(&req); err != nil {
		return validatorx.ErrRegistry.NewWithCause(validatorx.CodeInvalidRequest, err)
	}

	msg, err := h.service.Check(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.SendString(msg)
}

// CustomResponse echoes the verified caller back after a login redirect.
// GET /users/custom-response
func (h *UserHandlers) CustomResponse(c *fiber.Ctx) error {
	ac, ok := auth.FromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	return c.JSON(h.service.Echo(ac))
}

// GET /users/tenant/:tenantId
func (h *UserHandlers) ListByTenant(c *fiber.Ctx) error {
	users, err := h.service.ListByTenant(c.UserContext(), kernel.TenantID(c.Params("tenantId")))
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// GET /users
func (h *UserHandlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// POST /users/:tenantId
func (h *UserHandlers) CreateUser(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return err
	}

	tenantID := kernel.TenantID(c.Params("tenantId"))
	logx.WithContext(c.UserContext()).WithField("tenant_id", tenantID).Info("Request to create user")

	resp, err := h.service.CreateUser(c.UserContext(), tenantID, req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GET /users/:userId
func (h *UserHandlers) GetUser(c *fiber.Ctx) error {
	resp, err := h.service.GetUser(c.UserContext(), kernel.UserID(c.Params("userId")))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// PUT /users/:userId
func (h *UserHandlers) UpdateUser(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return err
	}

	resp, err := h.service.UpdateUser(c.UserContext(), kernel.UserID(c.Params("userId")), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// DELETE /users/:userId
func (h *UserHandlers) DeleteUser(c *fiber.Ctx) error {
	resp, err := h.service.DeleteUser(c.UserContext(), kernel.UserID(c.Params("userId")))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func parseRequest(c *fiber.Ctx) (user.Request, error) {
	var req user.Request
	if err := c.BodyParser(&req); err != nil {
		return req, validatorx.ErrRegistry.NewWithCause(validatorx.CodeInvalidRequest, err).
			WithDetail("body", "malformed")
	}
	return req, nil
}
