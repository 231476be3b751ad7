package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/produccion-api/internal/application/auth"
	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/policy"
)

// Locals keys con la identidad vigente del empleado.
const (
	LocalEmployeeID = "employee_id"
	LocalRole       = "role"
	LocalDepartment = "department"
	LocalName       = "name"
)

// sessionValidator contrato mínimo del middleware; lo implementa *auth.SessionValidator.
type sessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Session, error)
}

// AuthMiddleware valida el Bearer Token contra el empleado actual y deja en c.Locals su
// identidad vigente (no la del token).
func AuthMiddleware(v sessionValidator) fiber.Handler {
	return authenticate(v, false)
}

// StreamAuthMiddleware como AuthMiddleware pero admite también ?token=, ya que EventSource no
// puede enviar cabeceras.
func StreamAuthMiddleware(v sessionValidator) fiber.Handler {
	return authenticate(v, true)
}

func authenticate(v sessionValidator, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, errResp := bearerToken(c)
		if token == "" && allowQuery {
			token, errResp = c.Query("token"), nil
		}
		if errResp != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(errResp)
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}

		sess, err := v.Validate(c.Context(), token)
		if err != nil {
			if resp, ok := sessionError(err); ok {
				return c.Status(fiber.StatusUnauthorized).JSON(resp)
			}
			return err
		}
		c.Locals(LocalEmployeeID, sess.EmployeeID)
		c.Locals(LocalRole, sess.Role)
		c.Locals(LocalDepartment, sess.Department)
		c.Locals(LocalName, sess.Name)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, *dto.ErrorResponse) {
	header := c.Get("Authorization")
	if header == "" {
		return "", nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", &dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"}
	}
	return strings.TrimSpace(parts[1]), nil
}

// sessionError respuesta 401 para los rechazos de sesión. ForceLogout pide al cliente volver a
// autenticarse sin mostrar un error sin salida.
func sessionError(err error) (dto.ErrorResponse, bool) {
	switch {
	case errors.Is(err, domain.ErrStaleSession):
		return dto.ErrorResponse{Code: "STALE_SESSION", Message: err.Error(), ForceLogout: true}, true
	case errors.Is(err, domain.ErrAccountInactive):
		return dto.ErrorResponse{Code: "ACCOUNT_INACTIVE", Message: "cuenta desactivada", ForceLogout: true}, true
	case errors.Is(err, domain.ErrUserNotFound):
		return dto.ErrorResponse{Code: "USER_NOT_FOUND", Message: "el empleado ya no existe", ForceLogout: true}, true
	case errors.Is(err, domain.ErrTokenExpired):
		return dto.ErrorResponse{Code: "TOKEN_EXPIRED", Message: "token expirado"}, true
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrUnauthorized):
		return dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido"}, true
	}
	return dto.ErrorResponse{}, false
}

// RequireRole permite continuar solo si el rol vigente está entre roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "sesión sin rol"})
		}
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "tu rol no tiene acceso a este recurso",
			Reason:  domain.ReasonInsufficientRole,
		})
	}
}

func localString(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}

// GetEmployeeID devuelve el empleado autenticado (después del middleware de auth).
func GetEmployeeID(c *fiber.Ctx) string { return localString(c, LocalEmployeeID) }

// GetRole devuelve el rol vigente del empleado autenticado.
func GetRole(c *fiber.Ctx) string { return localString(c, LocalRole) }

// GetDepartment devuelve el departamento vigente del empleado autenticado.
func GetDepartment(c *fiber.Ctx) string { return localString(c, LocalDepartment) }

// GetActor identidad para el motor de permisos.
func GetActor(c *fiber.Ctx) policy.Actor {
	return policy.Actor{ID: GetEmployeeID(c), Role: GetRole(c)}
}
