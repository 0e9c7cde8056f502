package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
)

// respondError writes err as {"error": ..., "code": ...} with a status
// derived from its kind
func respondError(c *fiber.Ctx, err error) error {
	e := apperr.From(err)
	status := e.HTTPStatus()
	if status >= fiber.StatusInternalServerError && e.Kind == apperr.KindInternal {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": e.Message,
		"code":  e.Code,
	})
}

// ErrorHandler is the fiber error handler. Fiber's own errors keep their
// status; everything else goes through respondError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := apperr.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = apperr.CodeNotFound
		case fiber.StatusRequestEntityTooLarge:
			code = apperr.CodeFileTooLarge
		case fiber.StatusBadRequest:
			code = apperr.CodeInvalidOptions
		}
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fe.Message,
			"code":  code,
		})
	}
	return respondError(c, err)
}
