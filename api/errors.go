package api

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	orchestrator "github.com/tanpawarit/asic-salesbot/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	qstashx "github.com/tanpawarit/asic-salesbot/pkg/qstash"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, orchestrator.ErrInvalidSession),
		errors.Is(err, orchestrator.ErrInvalidMessage):
		return fiber.StatusBadRequest
	case errors.Is(err, qstashx.ErrMissingSignature),
		errors.Is(err, qstashx.ErrInvalidSignature):
		return fiber.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, contractx.ErrModelInvoke),
		errors.Is(err, contractx.ErrSchemaViolation),
		errors.Is(err, contractx.ErrCatalogUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// publicMessage keeps internal error chains out of responses.
func publicMessage(status int, err error) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnauthorized:
		return err.Error()
	case fiber.StatusGatewayTimeout:
		return "turn timed out"
	case fiber.StatusBadGateway:
		return "upstream dependency failed"
	default:
		return "internal error"
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	msg := publicMessage(status, err)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		msg = fe.Message
	}

	if status >= fiber.StatusInternalServerError {
		log.Ctx(c.UserContext()).Error().Err(err).Int("status", status).Msg("request failed")
	}

	return c.Status(status).JSON(errorResponse{
		Error:     msg,
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	})
}
