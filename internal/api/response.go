package api

import (
	"errors"
	"log/slog"

	"casedesk/internal/database"
	"casedesk/internal/user"
	"casedesk/internal/validator"

	"github.com/gofiber/fiber/v2"
)

// All responses share one envelope so clients can switch on status alone.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(envelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func created(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(envelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func errorResponse(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{
		Status:  "error",
		Message: message,
		Data:    data,
	})
}

// fail translates domain errors to HTTP statuses. Anything unrecognised is an
// internal error and gets logged with its cause, while the client only sees a
// generic message.
func fail(c *fiber.Ctx, logger *slog.Logger, err error) error {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		return errorResponse(c, fiber.StatusBadRequest, "Data error", validationErr.Fields)
	}

	var refErr *database.ReferentialError
	if errors.As(err, &refErr) {
		return errorResponse(c, fiber.StatusBadRequest, refErr.Error(), fiber.Map{
			"entity":      refErr.Entity,
			"invalid_ids": refErr.InvalidIDs,
		})
	}

	switch {
	case errors.Is(err, database.ErrUserNotFound):
		return errorResponse(c, fiber.StatusNotFound, "User not found", nil)
	case errors.Is(err, database.ErrGroupNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Group not found", nil)
	case errors.Is(err, database.ErrOrganisationNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Organisation not found", nil)
	case errors.Is(err, user.ErrUserActive):
		return errorResponse(c, fiber.StatusConflict, "Cannot delete active user", nil)
	}

	logger.ErrorContext(c.Context(), "Request failed", slog.String("error", err.Error()))
	return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", nil)
}
