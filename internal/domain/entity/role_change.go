package entity

import "time"

// RoleChange cambio de rol y/o departamento de un empleado pendiente de re-autenticación.
type RoleChange struct {
	ID                  string
	EmployeeID          string
	OldRole             string
	NewRole             string
	OldDepartment       *string
	NewDepartment       *string
	ChangedAt           time.Time
	HasLoggedOutSince   bool
	AutoLogoutScheduled bool
}

// Resolved el empleado ya volvió a autenticarse o cerró sesión desde el cambio.
func (rc *RoleChange) Resolved() bool { return rc.HasLoggedOutSince }
