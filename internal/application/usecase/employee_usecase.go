package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/policy"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
	"github.com/jhoicas/produccion-api/pkg/logger"
)

const minPasswordLength = 8

// RoleChangeTracker puerto hacia el tracker de cambios de rol.
type RoleChangeTracker interface {
	ApplyRoleChange(ctx context.Context, employeeID, oldRole, newRole string, oldDept, newDept *string) (*entity.RoleChange, error)
	MarkLoggedOut(ctx context.Context, employeeID string) error
	History(ctx context.Context, employeeID string) ([]*entity.RoleChange, error)
}

// EmployeeUseCase gestión de empleados. Las mutaciones quedan reservadas a RRHH y admin.
type EmployeeUseCase struct {
	repo    repository.EmployeeRepository
	tracker RoleChangeTracker
	log     *logger.Logger
}

// NewEmployeeUseCase construye el caso de uso con el puerto de persistencia y el tracker.
func NewEmployeeUseCase(repo repository.EmployeeRepository, tracker RoleChangeTracker, log *logger.Logger) *EmployeeUseCase {
	return &EmployeeUseCase{repo: repo, tracker: tracker, log: logger.OrNop(log).Component("employees")}
}

func requireManager(actor policy.Actor) error {
	if !entity.CanManageEmployees(actor.Role) {
		return domain.NewPermissionError(domain.ReasonInsufficientRole, "solo RRHH o administradores pueden gestionar empleados")
	}
	return nil
}

// Create alta de empleado por RRHH/admin.
func (uc *EmployeeUseCase) Create(ctx context.Context, actor policy.Actor, in dto.CreateEmployeeRequest) (*dto.EmployeeResponse, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	email := entity.NormalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, domain.Invalid("name", "es requerido")
	case !strings.Contains(email, "@"):
		return nil, domain.Invalid("email", "formato inválido")
	case len(in.Password) < minPasswordLength:
		return nil, domain.Invalid("password", "debe tener al menos %d caracteres", minPasswordLength)
	case !entity.ValidRole(in.Role):
		return nil, domain.Invalid("role", "rol desconocido %q", in.Role)
	case !entity.ValidDepartment(in.Department):
		return nil, domain.Invalid("department", "departamento desconocido %q", in.Department)
	}

	id := uuid.New().String()
	supervisorID := blankToNil(in.SupervisorID)
	if err := uc.checkSupervisor(ctx, id, in.Department, supervisorID); err != nil {
		return nil, err
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
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Department:   in.Department,
		Title:        strings.TrimSpace(in.Title),
		SupervisorID: supervisorID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	uc.log.Info().Str("employee_id", e.ID).Str("role", e.Role).Str("by", actor.ID).Msg("empleado creado")
	return dto.NewEmployeeResponse(e), nil
}

// Get un operador solo puede consultarse a sí mismo.
func (uc *EmployeeUseCase) Get(ctx context.Context, actor policy.Actor, id string) (*dto.EmployeeResponse, error) {
	if !policy.IsPrivileged(actor.Role) && actor.ID != id {
		return nil, domain.NewPermissionError(domain.ReasonInsufficientRole, "no puedes consultar otros empleados")
	}
	e, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrNotFound
	}
	return dto.NewEmployeeResponse(e), nil
}

// List listado para supervisores, RRHH y admin.
func (uc *EmployeeUseCase) List(ctx context.Context, actor policy.Actor, in dto.EmployeeListRequest) (*dto.EmployeeListResponse, error) {
	if !policy.IsPrivileged(actor.Role) {
		return nil, domain.NewPermissionError(domain.ReasonInsufficientRole, "no puedes listar empleados")
	}
	in.DefaultPage()
	list, err := uc.repo.List(ctx, repository.EmployeeFilter{
		Department:      in.Department,
		Role:            in.Role,
		IncludeInactive: in.IncludeInactive,
	}, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.EmployeeListResponse{
		Items: make([]dto.EmployeeResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset},
	}
	for _, e := range list {
		out.Items = append(out.Items, *dto.NewEmployeeResponse(e))
	}
	return out, nil
}

// Update edición parcial. Un cambio de rol o departamento se registra en el tracker, que avisa
// al empleado y programa el cierre de su sesión.
func (uc *EmployeeUseCase) Update(ctx context.Context, actor policy.Actor, id string, in dto.UpdateEmployeeRequest) (*dto.EmployeeResponse, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	e, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrNotFound
	}
	oldRole, oldDept, wasActive := e.Role, e.Department, e.IsActive

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.Invalid("name", "no puede quedar vacío")
		}
		e.Name = name
	}
	if in.Email != nil {
		email := entity.NormalizeEmail(*in.Email)
		if !strings.Contains(email, "@") {
			return nil, domain.Invalid("email", "formato inválido")
		}
		e.Email = email
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLength {
			return nil, domain.Invalid("password", "debe tener al menos %d caracteres", minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		e.PasswordHash = string(hash)
	}
	if in.Role != nil {
		if !entity.ValidRole(*in.Role) {
			return nil, domain.Invalid("role", "rol desconocido %q", *in.Role)
		}
		e.Role = *in.Role
	}
	if in.Department != nil {
		if !entity.ValidDepartment(*in.Department) {
			return nil, domain.Invalid("department", "departamento desconocido %q", *in.Department)
		}
		e.Department = *in.Department
	}
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}

	switch {
	case in.ClearSupervisor:
		e.SupervisorID = nil
	case in.SupervisorID != nil:
		e.SupervisorID = blankToNil(in.SupervisorID)
		if err := uc.checkSupervisor(ctx, e.ID, e.Department, e.SupervisorID); err != nil {
			return nil, err
		}
	case e.Department != oldDept && e.SupervisorID != nil:
		// El supervisor anterior pertenece a otro departamento: se desvincula.
		if err := uc.checkSupervisor(ctx, e.ID, e.Department, e.SupervisorID); err != nil {
			e.SupervisorID = nil
		}
	}

	e.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	if e.Role != oldRole || e.Department != oldDept {
		newDept := e.Department
		if _, err := uc.tracker.ApplyRoleChange(ctx, e.ID, oldRole, e.Role, &oldDept, &newDept); err != nil {
			// Sin el registro no hay cierre forzado: el llamador debe enterarse.
			uc.log.Error().Err(err).Str("employee_id", e.ID).Msg("registrar cambio de rol")
			return nil, fmt.Errorf("registrar cambio de rol: %w", err)
		}
	}
	if wasActive && !e.IsActive {
		uc.resolveSessions(ctx, e.ID)
	}
	return dto.NewEmployeeResponse(e), nil
}

// Delete baja lógica (is_active=false) o física si hard. Nadie puede eliminarse a sí mismo.
func (uc *EmployeeUseCase) Delete(ctx context.Context, actor policy.Actor, id string, hard bool) error {
	if err := requireManager(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return domain.Invalid("id", "no puedes eliminar tu propia cuenta")
	}
	e, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return domain.ErrNotFound
	}
	if hard {
		err = uc.repo.Delete(ctx, id)
	} else {
		e.IsActive = false
		e.UpdatedAt = time.Now()
		err = uc.repo.Update(ctx, e)
	}
	if err != nil {
		return err
	}
	uc.resolveSessions(ctx, id)
	uc.log.Info().Str("employee_id", id).Bool("hard", hard).Str("by", actor.ID).Msg("empleado eliminado")
	return nil
}

// Supervisors supervisores activos de un departamento.
func (uc *EmployeeUseCase) Supervisors(ctx context.Context, department string) ([]dto.EmployeeResponse, error) {
	if !entity.ValidDepartment(department) {
		return nil, domain.Invalid("department", "departamento desconocido %q", department)
	}
	list, err := uc.repo.List(ctx, repository.EmployeeFilter{Department: department, Role: entity.RoleSupervisor}, 100, 0)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EmployeeResponse, 0, len(list))
	for _, e := range list {
		out = append(out, *dto.NewEmployeeResponse(e))
	}
	return out, nil
}

// RoleChanges historial de cambios de rol de un empleado (RRHH/admin).
func (uc *EmployeeUseCase) RoleChanges(ctx context.Context, actor policy.Actor, employeeID string) ([]dto.RoleChangeResponse, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	list, err := uc.tracker.History(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RoleChangeResponse, 0, len(list))
	for _, rc := range list {
		out = append(out, dto.NewRoleChangeResponse(rc))
	}
	return out, nil
}

// checkSupervisor el supervisor debe existir, ser otro empleado y pertenecer al mismo departamento.
func (uc *EmployeeUseCase) checkSupervisor(ctx context.Context, employeeID, department string, supervisorID *string) error {
	if supervisorID == nil {
		return nil
	}
	if *supervisorID == employeeID {
		return domain.Invalid("supervisor_id", "un empleado no puede supervisarse a sí mismo")
	}
	s, err := uc.repo.GetByID(ctx, *supervisorID)
	if err != nil {
		return err
	}
	if s == nil {
		return domain.Invalid("supervisor_id", "el supervisor no existe")
	}
	if s.Department != department {
		return domain.Invalid("supervisor_id", "el supervisor debe pertenecer al departamento %s", department)
	}
	return nil
}

func (uc *EmployeeUseCase) resolveSessions(ctx context.Context, employeeID string) {
	if err := uc.tracker.MarkLoggedOut(ctx, employeeID); err != nil {
		uc.log.Error().Err(err).Str("employee_id", employeeID).Msg("cancelar cierre programado")
	}
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
