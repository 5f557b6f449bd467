package leads

import (
	claimsvc "leadmarket-backend/internal/application/claims"
	leadsvc "leadmarket-backend/internal/application/leads"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/middleware"
	"leadmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Claims *claimsvc.Service
	Leads  *leadsvc.Service
}

// Claim POST /api/v1/leads/:lead_id/claim. The claiming contractor is the one bound to the session.
func (h *Handlers) Claim(c *fiber.Ctx) error {
	leadID, err := uuid.Parse(c.Params("lead_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid lead_id")
	}
	contractorID, ok := middleware.SessionContractorID(c)
	if !ok {
		return response.DomainError(c, domain.ErrContractorNotFound)
	}

	res, err := h.Claims.ClaimLead(c.UserContext(), leadID, contractorID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Lead claimed successfully", res, nil)
}

// Get GET /api/v1/leads/:lead_id for the owning customer.
func (h *Handlers) Get(c *fiber.Ctx) error {
	leadID, err := uuid.Parse(c.Params("lead_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid lead_id")
	}
	customerID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	lead, err := h.Leads.GetLead(c.UserContext(), leadID, customerID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Lead fetched successfully", lead, nil)
}

// Cancel POST /api/v1/leads/:lead_id/cancel. Only the owning customer may cancel.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	leadID, err := uuid.Parse(c.Params("lead_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid lead_id")
	}
	customerID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	lead, err := h.Leads.CancelLead(c.UserContext(), leadID, customerID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Lead cancelled successfully", lead, nil)
}
