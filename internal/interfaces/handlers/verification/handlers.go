package verification

import (
	verifysvc "leadmarket-backend/internal/application/verification"
	"leadmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *verifysvc.Service
}

type issueRequest struct {
	Email string `json:"email"`
}

type consumeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Issue POST /api/v1/verification/issue. The code goes out by email only.
func (h *Handlers) Issue(c *fiber.Ctx) error {
	var req issueRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "A valid email is required")
	}
	issued, err := h.Service.Issue(c.UserContext(), req.Email)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Verification code sent", fiber.Map{
		"email":      issued.Email,
		"expires_at": issued.ExpiresAt,
	}, nil)
}

// Consume POST /api/v1/verification/consume
func (h *Handlers) Consume(c *fiber.Ctx) error {
	var req consumeRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Code == "" {
		return response.BadRequest(c, "Email and code are required")
	}
	if err := h.Service.Consume(c.UserContext(), req.Email, req.Code); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Email verified", fiber.Map{"verified": true}, nil)
}
