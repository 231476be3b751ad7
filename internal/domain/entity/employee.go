package entity

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Roles válidos para Employee.
const (
	RoleOperator   = "operator"
	RoleSupervisor = "supervisor"
	RoleHR         = "hr"
	RoleAdmin      = "admin"
)

// Departamentos de planta.
const (
	DepartmentFermentation = "fermentation"
	DepartmentExtraction   = "extraction"
	DepartmentPackaging    = "packaging"
	DepartmentOffice       = "office"
)

// Employee identidad de un empleado; fuente de verdad para las decisiones de autorización.
type Employee struct {
	ID           string
	Name         string
	Email        string // normalizado (case-folded), único
	PasswordHash string // bcrypt, nunca se devuelve
	Role         string
	Department   string
	Title        string
	SupervisorID *string // referencia débil a otro Employee del mismo departamento
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidRole indica si r es uno de los roles conocidos.
func ValidRole(r string) bool {
	switch r {
	case RoleOperator, RoleSupervisor, RoleHR, RoleAdmin:
		return true
	}
	return false
}

// ValidDepartment indica si d es uno de los departamentos conocidos.
func ValidDepartment(d string) bool {
	switch d {
	case DepartmentFermentation, DepartmentExtraction, DepartmentPackaging, DepartmentOffice:
		return true
	}
	return false
}

// CanManageEmployees roles que pueden crear, editar y borrar empleados.
func CanManageEmployees(role string) bool {
	return role == RoleHR || role == RoleAdmin
}

// NormalizeEmail forma canónica del email para unicidad y búsqueda sin distinguir mayúsculas.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
