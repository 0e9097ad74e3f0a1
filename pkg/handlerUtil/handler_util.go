package handlerUtil

import (
	"SignSync/internal/api/relay"
	contextPkg "SignSync/pkg/context"
	"SignSync/pkg/log"
	"SignSync/pkg/response"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// HandleEvent logs a failed socket operation and builds the error event
// payload the client sees. The session always stays open.
func (h *ErrorHandler) HandleEvent(ctx context.Context, err error, operation string) relay.ErrorPayload {
	fields := log.Fields{
		"session_id": contextPkg.GetSessionID(ctx),
		"request_id": contextPkg.GetRequestID(ctx),
		"error":      err.Error(),
		"operation":  operation,
	}

	if errors.Is(err, relay.ErrDecodeFrame) {
		h.logger.WithFields(fields).Warn("Frame could not be decoded")
		return relay.ErrorPayload{Message: relay.ErrDecodeFrame.Error()}
	}

	if errors.Is(err, relay.ErrInference) {
		log.TraceID(fields)
		h.logger.WithFields(fields).Error("Prediction failed")
		return relay.ErrorPayload{Message: relay.ErrInference.Error()}
	}

	if errors.Is(err, relay.ErrUnavailable) {
		h.logger.WithFields(fields).Debug("Prediction service unavailable")
		return relay.ErrorPayload{Message: relay.ErrUnavailable.Error()}
	}

	if errors.Is(err, relay.ErrUnknownEvent) {
		h.logger.WithFields(fields).Warn("Rejected client message")
		return relay.ErrorPayload{Message: relay.ErrUnknownEvent.Error()}
	}

	if errors.Is(err, relay.ErrInvalidMessage) {
		h.logger.WithFields(fields).Warn("Rejected client message")
		return relay.ErrorPayload{Message: relay.ErrInvalidMessage.Error()}
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return relay.ErrorPayload{Message: respErr.Error()}
	}

	h.logger.WithFields(fields).Error("Unexpected error")

	return relay.ErrorPayload{Message: "an unexpected error occurred"}
}

// HandleHTTP is the fiber error handler: coded errors keep their status,
// everything else is a 500.
func (h *ErrorHandler) HandleHTTP(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := utils.StatusMessage(code)

	var fiberErr *fiber.Error
	var respErr *response.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	case errors.As(err, &respErr):
		code = respErr.Code
		message = respErr.Error()
	}

	h.logger.WithFields(log.Fields{
		"request_id": c.Locals(contextPkg.FiberRequestIDKey),
		"path":       c.Path(),
		"status":     code,
		"error":      err.Error(),
	}).Warn("Request failed")

	return c.Status(code).JSON(fiber.Map{"error": message})
}
