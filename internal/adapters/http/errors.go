package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errRoute maps a failed one-shot attempt to a status code. The code is the
// error kind so clients can branch on it.
func errRoute(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	switch kind {
	case domain.ErrorKindInvalidPlace:
		return newError(c, 422, string(kind), kind.Message())
	case domain.ErrorKindNoRoute:
		return newError(c, 404, string(kind), kind.Message())
	case domain.ErrorKindTransport:
		return newError(c, 502, string(kind), kind.Message())
	case domain.ErrorKindIndexOutOfRange:
		return newError(c, 400, string(kind), kind.Message())
	}
	if errors.Is(err, domain.ErrEmptyQuery) {
		return errBadRequest(c, err.Error())
	}
	return errInternal(c, err.Error())
}
