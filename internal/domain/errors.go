package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrAccountInactive    = errors.New("cuenta desactivada")
	ErrTokenExpired       = errors.New("token expirado")
	ErrTokenInvalid       = errors.New("token inválido")
	// ErrStaleSession el rol o departamento del token ya no coincide con el empleado actual.
	ErrStaleSession = errors.New("rol o departamento modificado, inicie sesión nuevamente")
)

// Motivos de rechazo del motor de permisos.
const (
	ReasonNotYourRecord    = "not_your_record"
	ReasonAlreadyApproved  = "already_approved"
	ReasonInsufficientRole = "insufficient_role"
	ReasonCreatorNotFound  = "creator_not_found"
	ReasonNoCreator        = "no_creator"
)

// PermissionError acción autenticada pero no permitida (403). Envuelve ErrForbidden.
type PermissionError struct {
	Reason  string
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

func (e *PermissionError) Unwrap() error { return ErrForbidden }

// NewPermissionError construye un PermissionError.
func NewPermissionError(reason, message string) *PermissionError {
	return &PermissionError{Reason: reason, Message: message}
}

// ValidationError entrada mal formada o fuera de rango (400). Envuelve ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid construye un ValidationError para el campo indicado.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
