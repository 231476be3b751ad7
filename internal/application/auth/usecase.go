package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
	"github.com/jhoicas/produccion-api/pkg/jwt"
	"github.com/jhoicas/produccion-api/pkg/logger"
)

// MinPasswordLength longitud mínima de password.
const MinPasswordLength = 8

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// LogoutTracker resuelve los cambios de rol pendientes cuando el empleado se autentica o sale.
type LogoutTracker interface {
	MarkLoggedOut(ctx context.Context, employeeID string) error
}

// AuthUseCase casos de uso de autenticación: registro, login y logout.
type AuthUseCase struct {
	repo    repository.EmployeeRepository
	tracker LogoutTracker
	jwtCfg  JWTConfig
	log     *logger.Logger
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(repo repository.EmployeeRepository, tracker LogoutTracker, jwtCfg JWTConfig, log *logger.Logger) *AuthUseCase {
	return &AuthUseCase{repo: repo, tracker: tracker, jwtCfg: jwtCfg, log: logger.OrNop(log).Component("auth")}
}

// Register auto-registro: siempre crea un operador activo. Devuelve ErrEmailAlreadyExists si el
// email (sin distinguir mayúsculas) ya existe.
func (uc *AuthUseCase) Register(ctx context.Context, in dto.RegisterRequest) (*dto.EmployeeResponse, error) {
	name := strings.TrimSpace(in.Name)
	email := entity.NormalizeEmail(in.Email)
	if name == "" {
		return nil, domain.Invalid("name", "es requerido")
	}
	if !strings.Contains(email, "@") {
		return nil, domain.Invalid("email", "formato inválido")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, domain.Invalid("password", "debe tener al menos %d caracteres", MinPasswordLength)
	}
	if !entity.ValidDepartment(in.Department) {
		return nil, domain.Invalid("department", "departamento desconocido %q", in.Department)
	}

	existing, err := uc.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	e := &entity.Employee{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         entity.RoleOperator,
		Department:   in.Department,
		Title:        strings.TrimSpace(in.Title),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return dto.NewEmployeeResponse(e), nil
}

// Login verifica email/password, resuelve los cambios de rol pendientes y emite el token con el
// rol y departamento vigentes.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	e, err := uc.repo.GetByEmail(ctx, entity.NormalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !e.IsActive {
		return nil, domain.ErrAccountInactive
	}
	if err := uc.tracker.MarkLoggedOut(ctx, e.ID); err != nil {
		// El login no depende del tracker; el barrido acabará forzando el cierre si hiciera falta.
		uc.log.Error().Err(err).Str("employee_id", e.ID).Msg("resolver cambios de rol en login")
	}

	token, err := jwt.Generate(uc.jwtCfg.Secret, uc.jwtCfg.Issuer, e.ID, e.Role, e.Department, uc.jwtCfg.TTL)
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("employee_id", e.ID).Str("role", e.Role).Msg("login")
	return &dto.LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(uc.jwtCfg.TTL).UTC(),
		Employee:  *dto.NewEmployeeResponse(e),
	}, nil
}

// Logout explícito: resuelve cambios de rol pendientes y cancela el cierre programado.
func (uc *AuthUseCase) Logout(ctx context.Context, employeeID string) error {
	return uc.tracker.MarkLoggedOut(ctx, employeeID)
}

// Me datos vigentes del empleado autenticado.
func (uc *AuthUseCase) Me(ctx context.Context, employeeID string) (*dto.EmployeeResponse, error) {
	e, err := uc.repo.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrUserNotFound
	}
	return dto.NewEmployeeResponse(e), nil
}
