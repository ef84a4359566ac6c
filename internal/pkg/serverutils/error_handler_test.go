package serverutils

import (
	"errors"
	"testing"

	"school-portal-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, StatusOf(apperror.InvalidArgument("bad")))
	assert.Equal(t, fiber.StatusNotFound, StatusOf(apperror.NotFound("gone")))
	assert.Equal(t, fiber.StatusConflict, StatusOf(apperror.Conflict("dup")))
	assert.Equal(t, fiber.StatusForbidden, StatusOf(apperror.Forbidden("no")))
	assert.Equal(t, fiber.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.Equal(t, fiber.StatusUnprocessableEntity, StatusOf(fiber.NewError(fiber.StatusUnprocessableEntity, "x")))
}

func TestValidateRequestReturnsInvalidArgument(t *testing.T) {
	type req struct {
		Name string `validate:"required"`
	}
	err := ValidateRequest(req{})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "Name is required")
	assert.NoError(t, ValidateRequest(req{Name: "x"}))
}
