package repository

import (
	"context"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
)

// EmployeeFilter filtros de listado de empleados. Campos vacíos no filtran.
type EmployeeFilter struct {
	Department      string
	Role            string
	IncludeInactive bool
}

// EmployeeRepository define el puerto de persistencia para Employee (DIP).
// Los métodos Get* devuelven (nil, nil) cuando no existe el empleado.
type EmployeeRepository interface {
	Create(ctx context.Context, e *entity.Employee) error
	GetByID(ctx context.Context, id string) (*entity.Employee, error)
	GetByEmail(ctx context.Context, email string) (*entity.Employee, error)
	GetMany(ctx context.Context, ids []string) (map[string]*entity.Employee, error)
	Update(ctx context.Context, e *entity.Employee) error
	List(ctx context.Context, f EmployeeFilter, limit, offset int) ([]*entity.Employee, error)
	Delete(ctx context.Context, id string) error
}
