package leads

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	claimsvc "leadmarket-backend/internal/application/claims"
	leadsvc "leadmarket-backend/internal/application/leads"
	"leadmarket-backend/internal/application/ledger"
	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/pkg/testdb"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLeadsApp(t *testing.T, session map[string]interface{}) (*fiber.App, *gorm.DB) {
	db := testdb.Open(t)
	runner := testdb.Runner(db)
	notifier := &notifications.Dispatcher{DB: db}
	h := &Handlers{
		Claims: &claimsvc.Service{
			Tx:       runner,
			Ledger:   &ledger.Service{DB: db, Tx: runner},
			Notifier: notifier,
			Pricing:  claimsvc.Pricing{DefaultCost: 5000},
		},
		Leads: &leadsvc.Service{DB: db, Tx: runner, Notifier: notifier},
	}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", session)
		return c.Next()
	})
	app.Post("/leads/:lead_id/claim", h.Claim)
	app.Post("/leads/:lead_id/cancel", h.Cancel)
	app.Get("/leads/:lead_id", h.Get)
	return app, db
}

func contractorSession(acct *domain.ContractorAccount) map[string]interface{} {
	return map[string]interface{}{
		"user_id":       acct.UserID.String(),
		"role":          "contractor",
		"contractor_id": acct.ContractorID.String(),
	}
}

type body struct {
	Status string `json:"status"`
	Data   struct {
		AssignmentID string `json:"assignment_id"`
		BalanceAfter int64  `json:"balance_after"`
		Status       string `json:"status"`
	} `json:"data"`
	Error struct {
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func post(t *testing.T, app *fiber.App, path string) (int, body) {
	resp, err := app.Test(httptest.NewRequest("POST", path, nil))
	require.NoError(t, err)
	var out body
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestClaim_Success(t *testing.T) {
	var acct *domain.ContractorAccount
	session := map[string]interface{}{}
	app, db := setupLeadsApp(t, session)
	acct = testdb.Contractor(t, db, domain.ContractorApproved, 12000)
	for k, v := range contractorSession(acct) {
		session[k] = v
	}
	lead := testdb.Lead(t, db, testdb.User(t, db, "c@example.test", "customer").UserID, domain.LeadStatusOpen)

	status, out := post(t, app, "/leads/"+lead.LeadID.String()+"/claim")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "success", out.Status)
	assert.NotEmpty(t, out.Data.AssignmentID)
	assert.Equal(t, int64(7000), out.Data.BalanceAfter)

	status, out = post(t, app, "/leads/"+lead.LeadID.String()+"/claim")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, string(domain.KindLeadAlreadyClaimed), out.Error.Details["code"])
	assert.Equal(t, false, out.Error.Details["retryable"])
}

func TestClaim_ErrorKindsMapToStatus(t *testing.T) {
	session := map[string]interface{}{}
	app, db := setupLeadsApp(t, session)
	customer := testdb.User(t, db, "c@example.test", "customer")

	pending := testdb.Contractor(t, db, domain.ContractorPending, 10000)
	poor := testdb.Contractor(t, db, domain.ContractorApproved, 4999)
	open := testdb.Lead(t, db, customer.UserID, domain.LeadStatusOpen)

	cases := []struct {
		name   string
		acct   *domain.ContractorAccount
		lead   string
		status int
		code   domain.Kind
	}{
		{"not eligible", pending, open.LeadID.String(), fiber.StatusForbidden, domain.KindContractorNotEligible},
		{"insufficient", poor, open.LeadID.String(), fiber.StatusPaymentRequired, domain.KindInsufficientCredit},
		{"unknown lead", poor, uuid.NewString(), fiber.StatusNotFound, domain.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range contractorSession(tc.acct) {
				session[k] = v
			}
			status, out := post(t, app, "/leads/"+tc.lead+"/claim")
			assert.Equal(t, tc.status, status)
			assert.Equal(t, string(tc.code), out.Error.Details["code"])
		})
	}

	var count int64
	require.NoError(t, db.Model(&domain.Assignment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClaim_BadLeadID(t *testing.T) {
	app, _ := setupLeadsApp(t, map[string]interface{}{"user_id": uuid.NewString()})
	status, _ := post(t, app, "/leads/nope/claim")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestClaim_SessionWithoutContractor(t *testing.T) {
	app, db := setupLeadsApp(t, map[string]interface{}{"user_id": uuid.NewString(), "role": "contractor"})
	lead := testdb.Lead(t, db, testdb.User(t, db, "c@example.test", "customer").UserID, domain.LeadStatusOpen)
	status, out := post(t, app, "/leads/"+lead.LeadID.String()+"/claim")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, string(domain.KindNotFound), out.Error.Details["code"])
}

func TestCancel(t *testing.T) {
	session := map[string]interface{}{}
	app, db := setupLeadsApp(t, session)
	owner := testdb.User(t, db, "owner@example.test", "customer")
	other := testdb.User(t, db, "other@example.test", "customer")
	lead := testdb.Lead(t, db, owner.UserID, domain.LeadStatusOpen)

	session["user_id"] = other.UserID.String()
	status, _ := post(t, app, "/leads/"+lead.LeadID.String()+"/cancel")
	assert.Equal(t, fiber.StatusNotFound, status)

	session["user_id"] = owner.UserID.String()
	status, out := post(t, app, "/leads/"+lead.LeadID.String()+"/cancel")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, string(domain.LeadStatusCancelledByCustomer), out.Data.Status)

	status, out = post(t, app, "/leads/"+lead.LeadID.String()+"/cancel")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, string(domain.KindInvalidStateTransition), out.Error.Details["code"])
}

func TestGet_OwnerOnly(t *testing.T) {
	owner := uuid.New()
	app, db := setupLeadsApp(t, map[string]interface{}{"user_id": owner.String(), "role": "customer"})
	mine := testdb.Lead(t, db, owner, domain.LeadStatusOpen)
	theirs := testdb.Lead(t, db, uuid.New(), domain.LeadStatusOpen)

	resp, err := app.Test(httptest.NewRequest("GET", "/leads/"+mine.LeadID.String(), nil))
	require.NoError(t, err)
	var out body
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(domain.LeadStatusOpen), out.Data.Status)

	resp, err = app.Test(httptest.NewRequest("GET", "/leads/"+theirs.LeadID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/leads/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
