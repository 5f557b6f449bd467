package middleware

import (
	"leadmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(userLocal) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

func sessionField(c *fiber.Ctx, key string) string {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// SessionUserID returns the logged-in user's id.
func SessionUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(sessionField(c, "user_id"))
	return id, err == nil
}

// SessionContractorID returns the contractor account bound to the session, if any.
func SessionContractorID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(sessionField(c, "contractor_id"))
	return id, err == nil
}
