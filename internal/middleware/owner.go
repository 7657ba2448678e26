package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
)

// SessionOwnerKey is the session key the login flow stores the owner id under.
const SessionOwnerKey = "owner_id"

const ownerLocalsKey = "owner_id"

// OwnerMiddleware resolves the tenant that owns the request.
type OwnerMiddleware struct {
	header string
}

// NewOwnerMiddleware creates the middleware. When header is non-empty, an
// owner id in that request header is trusted ahead of the session.
func NewOwnerMiddleware(header string) *OwnerMiddleware {
	return &OwnerMiddleware{header: header}
}

// RequireOwner rejects requests without an owner with 401.
func (m *OwnerMiddleware) RequireOwner(c fiber.Ctx) error {
	owner := m.resolve(c)
	if owner == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "Authentication required",
		})
	}

	c.Locals(ownerLocalsKey, owner)
	return c.Next()
}

func (m *OwnerMiddleware) resolve(c fiber.Ctx) string {
	if m.header != "" {
		if owner := strings.TrimSpace(c.Get(m.header)); owner != "" {
			return owner
		}
	}

	sess := session.FromContext(c)
	if sess == nil {
		return ""
	}
	owner, _ := sess.Get(SessionOwnerKey).(string)
	return owner
}

// OwnerID returns the owner resolved by RequireOwner.
func OwnerID(c fiber.Ctx) string {
	owner, _ := c.Locals(ownerLocalsKey).(string)
	return owner
}
