package dto

import (
	"time"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
)

// RegisterRequest auto-registro público; el rol siempre es operator.
type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
	Title      string `json:"title,omitempty"`
}

// LoginRequest entrada para login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse token de sesión y empleado autenticado.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Employee  EmployeeResponse `json:"employee"`
}

// CreateEmployeeRequest alta de empleado por RRHH/admin.
type CreateEmployeeRequest struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Role         string  `json:"role"`
	Department   string  `json:"department"`
	Title        string  `json:"title,omitempty"`
	SupervisorID *string `json:"supervisor_id,omitempty"`
}

// UpdateEmployeeRequest edición parcial: los campos nil no se modifican.
// ClearSupervisor quita el supervisor asignado.
type UpdateEmployeeRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Password        *string `json:"password,omitempty"`
	Role            *string `json:"role,omitempty"`
	Department      *string `json:"department,omitempty"`
	Title           *string `json:"title,omitempty"`
	SupervisorID    *string `json:"supervisor_id,omitempty"`
	ClearSupervisor bool    `json:"clear_supervisor,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// EmployeeListRequest filtros del listado.
type EmployeeListRequest struct {
	PageRequest
	Department      string `query:"department"`
	Role            string `query:"role"`
	IncludeInactive bool   `query:"include_inactive"`
}

// EmployeeResponse salida de un empleado (sin password).
type EmployeeResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Department   string    `json:"department"`
	Title        string    `json:"title,omitempty"`
	SupervisorID *string   `json:"supervisor_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EmployeeListResponse página de empleados.
type EmployeeListResponse struct {
	Items []EmployeeResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// SessionResponse identidad vigente del empleado autenticado.
type SessionResponse struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// RoleChangeResponse historial de cambios de rol.
type RoleChangeResponse struct {
	ID                  string    `json:"id"`
	EmployeeID          string    `json:"employee_id"`
	OldRole             string    `json:"old_role"`
	NewRole             string    `json:"new_role"`
	OldDepartment       *string   `json:"old_department,omitempty"`
	NewDepartment       *string   `json:"new_department,omitempty"`
	ChangedAt           time.Time `json:"changed_at"`
	HasLoggedOutSince   bool      `json:"has_logged_out_since"`
	AutoLogoutScheduled bool      `json:"auto_logout_scheduled"`
}

// NewEmployeeResponse proyecta un empleado sin el hash de password.
func NewEmployeeResponse(e *entity.Employee) *EmployeeResponse {
	if e == nil {
		return nil
	}
	return &EmployeeResponse{
		ID:           e.ID,
		Name:         e.Name,
		Email:        e.Email,
		Role:         e.Role,
		Department:   e.Department,
		Title:        e.Title,
		SupervisorID: e.SupervisorID,
		IsActive:     e.IsActive,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// NewRoleChangeResponse proyecta un cambio de rol.
func NewRoleChangeResponse(rc *entity.RoleChange) RoleChangeResponse {
	return RoleChangeResponse{
		ID:                  rc.ID,
		EmployeeID:          rc.EmployeeID,
		OldRole:             rc.OldRole,
		NewRole:             rc.NewRole,
		OldDepartment:       rc.OldDepartment,
		NewDepartment:       rc.NewDepartment,
		ChangedAt:           rc.ChangedAt,
		HasLoggedOutSince:   rc.HasLoggedOutSince,
		AutoLogoutScheduled: rc.AutoLogoutScheduled,
	}
}
