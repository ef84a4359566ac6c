package serverutils

import (
	"errors"

	"school-portal-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// StatusOf maps an error kind onto the HTTP status the client sees.
func StatusOf(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	switch apperror.KindOf(err) {
	case apperror.KindInvalidArgument:
		return fiber.StatusBadRequest
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func messageOf(err error, status int) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperror.KindInternal {
			return "Internal server error"
		}
		return appErr.Message
	}
	if status == fiber.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

// ErrorHandler is the fiber.Config error handler.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	status := StatusOf(err)
	return ctx.Status(status).JSON(ErrorResponse(status, messageOf(err, status)))
}

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON envelope
// before they reach fiber's default handler.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return ErrorHandler(ctx, err)
	}
}
