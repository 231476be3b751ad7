// Package memory implementa los repositorios en memoria del proceso. Cada operación toma el
// mutex del repositorio, lo que emula la atomicidad por documento del almacenamiento real.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
)

var _ repository.EmployeeRepository = (*EmployeeRepo)(nil)

// EmployeeRepo repositorio de empleados en memoria.
type EmployeeRepo struct {
	mu   sync.RWMutex
	byID map[string]*entity.Employee
}

// NewEmployeeRepository construye el repositorio vacío.
func NewEmployeeRepository() *EmployeeRepo {
	return &EmployeeRepo{byID: make(map[string]*entity.Employee)}
}

func cloneEmployee(e *entity.Employee) *entity.Employee {
	c := *e
	if e.SupervisorID != nil {
		s := *e.SupervisorID
		c.SupervisorID = &s
	}
	return &c
}

func (r *EmployeeRepo) emailTaken(email, exceptID string) bool {
	for id, e := range r.byID {
		if id != exceptID && e.Email == email {
			return true
		}
	}
	return false
}

func (r *EmployeeRepo) Create(_ context.Context, e *entity.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(e.Email, "") {
		return domain.ErrEmailAlreadyExists
	}
	r.byID[e.ID] = cloneEmployee(e)
	return nil
}

func (r *EmployeeRepo) GetByID(_ context.Context, id string) (*entity.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneEmployee(e), nil
}

func (r *EmployeeRepo) GetByEmail(_ context.Context, email string) (*entity.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byID {
		if e.Email == email {
			return cloneEmployee(e), nil
		}
	}
	return nil, nil
}

func (r *EmployeeRepo) GetMany(_ context.Context, ids []string) (map[string]*entity.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*entity.Employee, len(ids))
	for _, id := range ids {
		if e, ok := r.byID[id]; ok {
			out[id] = cloneEmployee(e)
		}
	}
	return out, nil
}

func (r *EmployeeRepo) Update(_ context.Context, e *entity.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.ID]; !ok {
		return domain.ErrUserNotFound
	}
	if r.emailTaken(e.Email, e.ID) {
		return domain.ErrEmailAlreadyExists
	}
	r.byID[e.ID] = cloneEmployee(e)
	return nil
}

func (r *EmployeeRepo) List(_ context.Context, f repository.EmployeeFilter, limit, offset int) ([]*entity.Employee, error) {
	r.mu.RLock()
	list := make([]*entity.Employee, 0, len(r.byID))
	for _, e := range r.byID {
		if !f.IncludeInactive && !e.IsActive {
			continue
		}
		if f.Department != "" && e.Department != f.Department {
			continue
		}
		if f.Role != "" && e.Role != f.Role {
			continue
		}
		list = append(list, cloneEmployee(e))
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return page(list, limit, offset), nil
}

func (r *EmployeeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func page[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
