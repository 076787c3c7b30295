package server

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jobfinder/assistant/internal/apperr"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Message string `json:"message"`
}

func respondJSON(c *fiber.Ctx, status int, v any) error {
	return c.Status(status).JSON(v)
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return respondJSON(c, status, ErrorResponse{Message: message})
}

// statusFor maps the error taxonomy onto HTTP statuses. Unknown errors are
// internal; transient upstream outages are 503 so clients know to retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondAppError(c *fiber.Ctx, err error) error {
	return respondError(c, statusFor(err), err.Error())
}
