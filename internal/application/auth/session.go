package auth

import (
	"context"
	"errors"

	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
	"github.com/jhoicas/produccion-api/pkg/jwt"
)

// Session identidad vigente adjunta a cada petición autenticada. Siempre refleja el empleado
// actual, no los claims del token.
type Session struct {
	EmployeeID string
	Name       string
	Role       string
	Department string
}

// SessionValidator valida tokens contra el estado actual del empleado.
type SessionValidator struct {
	repo   repository.EmployeeRepository
	secret string
}

func NewSessionValidator(repo repository.EmployeeRepository, secret string) *SessionValidator {
	return &SessionValidator{repo: repo, secret: secret}
}

// Validate verifica firma y vigencia, carga el empleado y rechaza si no existe, está inactivo o
// su rol/departamento ya no coincide con el del token (ErrStaleSession).
func (v *SessionValidator) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	claims, err := jwt.Parse(v.secret, token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	e, err := v.repo.GetByID(ctx, claims.EmployeeID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrUserNotFound
	}
	if !e.IsActive {
		return nil, domain.ErrAccountInactive
	}
	if e.Role != claims.Role || e.Department != claims.Department {
		return nil, domain.ErrStaleSession
	}
	return &Session{
		EmployeeID: e.ID,
		Name:       e.Name,
		Role:       e.Role,
		Department: e.Department,
	}, nil
}
