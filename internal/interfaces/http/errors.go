package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/pkg/logger"
)

var errInvalidBody = &domain.ValidationError{Field: "body", Message: "cuerpo inválido"}

// ErrorHandler traduce los errores devueltos por los handlers a dto.ErrorResponse.
// Los 500 se registran y llevan un mensaje genérico.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	log = logger.OrNop(log).Component("http")
	return func(c *fiber.Ctx, err error) error {
		status, body := mapError(err)
		if status == fiber.StatusInternalServerError {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error inesperado")
		}
		return c.Status(status).JSON(body)
	}
}

func mapError(err error) (int, dto.ErrorResponse) {
	var (
		verr *domain.ValidationError
		perr *domain.PermissionError
		ferr *fiber.Error
	)
	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: verr.Error(), Field: verr.Field}
	case errors.As(err, &perr):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: perr.Message, Reason: perr.Reason}
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "EMAIL_EXISTS", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"}
	case errors.Is(err, domain.ErrUserNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrStaleSession):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "STALE_SESSION", Message: err.Error(), ForceLogout: true}
	case errors.Is(err, domain.ErrTokenExpired):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "TOKEN_EXPIRED", Message: err.Error()}
	case errors.Is(err, domain.ErrTokenInvalid):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "INVALID_TOKEN", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"}
	case errors.Is(err, domain.ErrAccountInactive):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "ACCOUNT_INACTIVE", Message: "cuenta desactivada"}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: err.Error()}
	case errors.As(err, &ferr):
		return ferr.Code, dto.ErrorResponse{Code: "HTTP_ERROR", Message: ferr.Message}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno del servidor"}
}
