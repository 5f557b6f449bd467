package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authsvc "leadmarket-backend/internal/application/auth"
	"leadmarket-backend/internal/config"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/middleware"
	"leadmarket-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testdb.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cfg := &config.Config{Env: "test", ClaimCostDefault: 5000, TxMaxAttempts: 3, HealthAdminKey: "k"}
	return New(cfg, db, rdb), db
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *domain.User {
	hash, err := authsvc.HashPassword("Secret123!")
	require.NoError(t, err)
	u := &domain.User{Fullname: "Test User", Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func login(t *testing.T, app *fiber.App, email string) string {
	b, _ := json.Marshal(map[string]string{"email": email, "password": "Secret123!"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	for _, c := range resp.Header.Values("Set-Cookie") {
		if strings.HasPrefix(c, middleware.SessionCookieName+"=") {
			return strings.SplitN(c, ";", 2)[0]
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func call(t *testing.T, app *fiber.App, method, path, cookie string) (*http.Response, map[string]interface{}) {
	req := httptest.NewRequest(method, path, nil)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestClaimFlow(t *testing.T) {
	app, db := setupApp(t)
	customer := createUser(t, db, "cust@example.test", "customer")
	pro := createUser(t, db, "pro@example.test", "contractor")
	acct := &domain.ContractorAccount{UserID: pro.UserID, Status: domain.ContractorApproved, Balance: 6000}
	require.NoError(t, db.Create(acct).Error)
	require.NoError(t, db.Create(&domain.LedgerEntry{ContractorID: acct.ContractorID, Amount: 6000, Reason: domain.ReasonAdminTopUp, BalanceAfter: 6000}).Error)
	lead := testdb.Lead(t, db, customer.UserID, domain.LeadStatusOpen)

	resp, _ := call(t, app, "POST", "/api/v1/leads/"+lead.LeadID.String()+"/claim", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	custCookie := login(t, app, customer.Email)
	resp, _ = call(t, app, "POST", "/api/v1/leads/"+lead.LeadID.String()+"/claim", custCookie)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, out := call(t, app, "GET", "/api/v1/leads/"+lead.LeadID.String(), custCookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, out)
	assert.Equal(t, string(domain.LeadStatusOpen), out["data"].(map[string]interface{})["status"])

	proCookie := login(t, app, pro.Email)
	resp, _ = call(t, app, "GET", "/api/v1/leads/"+lead.LeadID.String(), proCookie)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, out = call(t, app, "GET", "/api/v1/contractors/me", proCookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, out)
	assert.Equal(t, acct.ContractorID.String(), out["data"].(map[string]interface{})["contractor_id"])

	resp, out = call(t, app, "POST", "/api/v1/leads/"+lead.LeadID.String()+"/claim", proCookie)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)
	assert.Equal(t, float64(1000), out["data"].(map[string]interface{})["balance_after"])

	resp, out = call(t, app, "GET", "/api/v1/contractors/me/ledger", proCookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, out["data"].(map[string]interface{})["entries"], 2)

	resp, out = call(t, app, "POST", "/api/v1/leads/"+lead.LeadID.String()+"/cancel", custCookie)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	details := out["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Equal(t, "contact_support", details["action"])
}

func TestAdminReview(t *testing.T) {
	app, db := setupApp(t)
	admin := createUser(t, db, "admin@example.test", "admin")
	acct := testdb.Contractor(t, db, domain.ContractorPending, 0)

	resp, _ := call(t, app, "PATCH", "/api/v1/contractors/"+acct.ContractorID.String()+"/approve", login(t, app, admin.Email))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stored domain.ContractorAccount
	require.NoError(t, db.Where("contractor_id = ?", acct.ContractorID).First(&stored).Error)
	assert.Equal(t, domain.ContractorApproved, stored.Status)
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := setupApp(t)

	resp, out := call(t, app, "GET", "/health/json", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "leadmarket_")
}
