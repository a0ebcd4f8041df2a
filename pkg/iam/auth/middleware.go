package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/metricx"
)

const (
	localsAuth    = "auth"
	localsFailure = "auth_failure"
)

// TokenMiddleware authenticates bearer tokens through the issuer index.
type TokenMiddleware struct {
	dispatcher *Dispatcher
}

func NewAuthMiddleware(dispatcher *Dispatcher) *TokenMiddleware {
	return &TokenMiddleware{dispatcher: dispatcher}
}

// Authenticate attaches an AuthContext when the bearer token verifies. It
// never rejects: without a header, with a malformed token or an unknown
// issuer the request simply continues unauthenticated. A token from a known
// issuer that fails verification leaves its reason for RequireAuth.
func (am *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearer(c.Get(fiber.HeaderAuthorization))
		if !ok {
			metricx.ObserveDispatch(metricx.DispatchNoHeader)
			return c.Next()
		}

		verifier, ok := am.dispatcher.Resolve(token)
		if !ok {
			return c.Next()
		}

		authContext, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			logx.WithContext(c.UserContext()).WithError(err).
				WithField("issuer", verifier.Issuer()).
				Debug("bearer token rejected")
			c.Locals(localsFailure, err)
			return c.Next()
		}

		c.Locals(localsAuth, authContext)
		return c.Next()
	}
}

// RequireAuth rejects requests that Authenticate did not verify.
func (am *TokenMiddleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ac, ok := FromContext(c); ok && ac.IsValid() {
			return c.Next()
		}

		message := iam.ErrInvalidToken().Message
		if failure, ok := c.Locals(localsFailure).(error); ok && errx.HasCode(failure, iam.CodeTokenExpired) {
			message = iam.ErrTokenExpired().Message
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":  message,
			"status": fiber.StatusUnauthorized,
		})
	}
}

// RequireScope rejects verified callers that hold none of scopes.
func (am *TokenMiddleware) RequireScope(scopes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := FromContext(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":  iam.ErrUnauthorized().Message,
				"status": fiber.StatusUnauthorized,
			})
		}
		if !ac.HasAnyScope(scopes...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":  iam.ErrAccessDenied().Message,
				"status": fiber.StatusForbidden,
			})
		}
		return c.Next()
	}
}

// FromContext returns the AuthContext stored by Authenticate.
func FromContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ac, ok := c.Locals(localsAuth).(*kernel.AuthContext)
	return ac, ok && ac != nil
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
