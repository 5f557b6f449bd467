package response

import (
	"errors"

	"leadmarket-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return send(c, fiber.StatusOK, message, data, metadata)
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return send(c, fiber.StatusCreated, message, data, metadata)
}

func send(c *fiber.Ctx, status int, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(status).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// Unauthorized sends 401 with the same shape as other errors (status "error", error.message).
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// BadRequest sends 400 for malformed input that never reached the domain.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusBadRequest, nil)
}

// StatusFor maps an error kind to its HTTP status. Every kind has a distinct status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindLeadAlreadyClaimed:
		return fiber.StatusConflict
	case domain.KindContractorNotEligible:
		return fiber.StatusForbidden
	case domain.KindInsufficientCredit:
		return fiber.StatusPaymentRequired
	case domain.KindInvalidStateTransition:
		return fiber.StatusUnprocessableEntity
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindInvalidInput:
		return fiber.StatusBadRequest
	case domain.KindTimeout:
		return fiber.StatusGatewayTimeout
	case domain.KindUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// DomainError renders any service error. details.code carries the kind and
// details.retryable tells the caller whether trying again later can help.
func DomainError(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	message := domain.ErrInternal.Message
	details := map[string]interface{}{}

	if de, ok := asDomain(err); ok {
		for k, v := range de.Details {
			details[k] = v
		}
		if kind != domain.KindInternal {
			message = de.Message
		}
	} else if kind == domain.KindTimeout {
		message = domain.ErrTimeout.Message
	}
	details["code"] = string(kind)
	details["retryable"] = domain.Retryable(kind)
	if kind == domain.KindUnavailable || kind == domain.KindTimeout {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return Error(c, message, StatusFor(kind), details)
}

func asDomain(err error) (*domain.Error, bool) {
	var de *domain.Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
