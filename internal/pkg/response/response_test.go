package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"leadmarket-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_EveryKindHasDistinctStatus(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		kind      domain.Kind
		retryable bool
	}{
		{domain.ErrLeadAlreadyClaimed, fiber.StatusConflict, domain.KindLeadAlreadyClaimed, false},
		{domain.ErrContractorNotEligible, fiber.StatusForbidden, domain.KindContractorNotEligible, false},
		{domain.ErrInsufficientCredit, fiber.StatusPaymentRequired, domain.KindInsufficientCredit, false},
		{domain.ErrLeadNotCancellable, fiber.StatusUnprocessableEntity, domain.KindInvalidStateTransition, false},
		{domain.ErrLeadNotFound, fiber.StatusNotFound, domain.KindNotFound, false},
		{domain.ErrInvalidInput, fiber.StatusBadRequest, domain.KindInvalidInput, false},
		{domain.ErrTimeout, fiber.StatusGatewayTimeout, domain.KindTimeout, true},
		{domain.ErrUnavailable, fiber.StatusServiceUnavailable, domain.KindUnavailable, true},
		{errors.New("boom"), fiber.StatusInternalServerError, domain.KindInternal, false},
	}

	app := fiber.New()
	seen := map[int]bool{}
	for i, tc := range cases {
		tc := tc
		path := fmt.Sprintf("/e/%d", i)
		app.Get(path, func(c *fiber.Ctx) error { return DomainError(c, tc.err) })

		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.kind)
		assert.False(t, seen[resp.StatusCode], "status reused: %d", resp.StatusCode)
		seen[resp.StatusCode] = true

		var out ErrorBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		details := out.Error.Details.(map[string]interface{})
		assert.Equal(t, string(tc.kind), details["code"])
		assert.Equal(t, tc.retryable, details["retryable"])
		if tc.retryable {
			assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
		}
	}
}

func TestDomainError_HidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return DomainError(c, domain.WrapError(domain.KindInternal, "pq: relation missing", errors.New("secret")))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	var out ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, domain.ErrInternal.Message, out.Error.Message)
}

func TestDomainError_ContextDeadlineIsTimeout(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return DomainError(c, context.DeadlineExceeded) })
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)
}

func TestDomainError_KeepsCancelDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return DomainError(c, domain.ErrLeadNotCancellable) })
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	var out ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	details := out.Error.Details.(map[string]interface{})
	assert.Equal(t, "contact_support", details["action"])
	_, leaked := domain.ErrLeadNotCancellable.Details["code"]
	assert.False(t, leaked)
}
