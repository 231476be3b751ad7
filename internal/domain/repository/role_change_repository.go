package repository

import (
	"context"
	"time"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
)

// RoleChangeRepository puerto de persistencia para RoleChange.
type RoleChangeRepository interface {
	Create(ctx context.Context, rc *entity.RoleChange) error
	GetByID(ctx context.Context, id string) (*entity.RoleChange, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*entity.RoleChange, error)
	// ResolveAll marca has_logged_out_since en todos los cambios sin resolver del empleado.
	ResolveAll(ctx context.Context, employeeID string) (int, error)
	// ClaimAutoLogout marca auto_logout_scheduled solo si el cambio sigue sin resolver y sin
	// reclamar. true = este llamador ganó el reclamo.
	ClaimAutoLogout(ctx context.Context, id string) (bool, error)
	// SupersedePending marca auto_logout_scheduled en los cambios del empleado sin resolver ni
	// reclamar, salvo keepID: el cierre programado del cambio nuevo cubre a los anteriores.
	SupersedePending(ctx context.Context, employeeID, keepID string) (int, error)
	// ListOverdue cambios sin resolver ni reclamar anteriores a before.
	ListOverdue(ctx context.Context, before time.Time) ([]*entity.RoleChange, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int, error)
}
