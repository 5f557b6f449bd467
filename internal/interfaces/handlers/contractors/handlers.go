package contractors

import (
	contractorsvc "leadmarket-backend/internal/application/contractors"
	ledgersvc "leadmarket-backend/internal/application/ledger"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/middleware"
	"leadmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

type Handlers struct {
	Service *contractorsvc.Service
	Ledger  *ledgersvc.Service
	// Rdb, when set, is used to sign a rejected contractor out everywhere.
	Rdb *redis.Client
}

type reviewRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// Approve PATCH /api/v1/contractors/:contractor_id/approve
func (h *Handlers) Approve(c *fiber.Ctx) error {
	id, req, err := parseReview(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	res, err := h.Service.Approve(c.UserContext(), id, req.Notes)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, reviewMessage(res, "Contractor approved"), res, nil)
}

// Reject PATCH /api/v1/contractors/:contractor_id/reject
func (h *Handlers) Reject(c *fiber.Ctx) error {
	id, req, err := parseReview(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if req.Reason == "" {
		req.Reason = req.Notes
	}
	res, err := h.Service.Reject(c.UserContext(), id, req.Reason)
	if err != nil {
		return response.DomainError(c, err)
	}
	if res.Changed {
		middleware.DestroyUserSessions(c.UserContext(), h.Rdb, res.Account.UserID.String())
	}
	return response.Success(c, reviewMessage(res, "Contractor rejected"), res, nil)
}

func parseReview(c *fiber.Ctx) (uuid.UUID, reviewRequest, error) {
	var req reviewRequest
	id, err := uuid.Parse(c.Params("contractor_id"))
	if err != nil {
		return id, req, fiber.NewError(fiber.StatusBadRequest, "Invalid contractor_id")
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return id, req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	return id, req, nil
}

func reviewMessage(res *contractorsvc.Result, done string) string {
	if !res.Changed {
		return "No change"
	}
	return done
}

// Me GET /api/v1/contractors/me: the account bound to the session user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	acct, err := h.Service.GetByUser(c.UserContext(), userID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Contractor account fetched successfully", acct, nil)
}

// Ledger GET /api/v1/contractors/me/ledger: cached balance plus newest entries.
func (h *Handlers) Ledger(c *fiber.Ctx) error {
	contractorID, ok := middleware.SessionContractorID(c)
	if !ok {
		return response.DomainError(c, domain.ErrContractorNotFound)
	}
	limit := c.QueryInt("limit", defaultLedgerLimit)
	if limit <= 0 || limit > maxLedgerLimit {
		limit = defaultLedgerLimit
	}

	ctx := c.UserContext()
	balance, err := h.Ledger.Balance(ctx, contractorID)
	if err != nil {
		return response.DomainError(c, err)
	}
	entries, err := h.Ledger.Entries(ctx, contractorID, limit)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Ledger fetched successfully", fiber.Map{
		"contractor_id": contractorID,
		"balance":       balance,
		"entries":       entries,
	}, fiber.Map{"limit": limit, "count": len(entries)})
}
