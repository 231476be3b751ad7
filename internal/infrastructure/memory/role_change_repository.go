package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
)

var _ repository.RoleChangeRepository = (*RoleChangeRepo)(nil)

// RoleChangeRepo repositorio en memoria de cambios de rol.
type RoleChangeRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.RoleChange
}

// NewRoleChangeRepository construye el repositorio vacío.
func NewRoleChangeRepository() *RoleChangeRepo {
	return &RoleChangeRepo{rows: make(map[string]*entity.RoleChange)}
}

func cloneRoleChange(rc *entity.RoleChange) *entity.RoleChange {
	c := *rc
	if rc.OldDepartment != nil {
		s := *rc.OldDepartment
		c.OldDepartment = &s
	}
	if rc.NewDepartment != nil {
		s := *rc.NewDepartment
		c.NewDepartment = &s
	}
	return &c
}

func (r *RoleChangeRepo) Create(_ context.Context, rc *entity.RoleChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[rc.ID] = cloneRoleChange(rc)
	return nil
}

func (r *RoleChangeRepo) GetByID(_ context.Context, id string) (*entity.RoleChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneRoleChange(rc), nil
}

func (r *RoleChangeRepo) ListByEmployee(_ context.Context, employeeID string) ([]*entity.RoleChange, error) {
	r.mu.Lock()
	var list []*entity.RoleChange
	for _, rc := range r.rows {
		if rc.EmployeeID == employeeID {
			list = append(list, cloneRoleChange(rc))
		}
	}
	r.mu.Unlock()
	sortByChangedAtDesc(list)
	return list, nil
}

func (r *RoleChangeRepo) ResolveAll(_ context.Context, employeeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rc := range r.rows {
		if rc.EmployeeID == employeeID && !rc.HasLoggedOutSince {
			rc.HasLoggedOutSince = true
			n++
		}
	}
	return n, nil
}

func (r *RoleChangeRepo) ClaimAutoLogout(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.rows[id]
	if !ok || rc.HasLoggedOutSince || rc.AutoLogoutScheduled {
		return false, nil
	}
	rc.AutoLogoutScheduled = true
	return true, nil
}

func (r *RoleChangeRepo) SupersedePending(_ context.Context, employeeID, keepID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rc := range r.rows {
		if id == keepID || rc.EmployeeID != employeeID || rc.HasLoggedOutSince || rc.AutoLogoutScheduled {
			continue
		}
		rc.AutoLogoutScheduled = true
		n++
	}
	return n, nil
}

func (r *RoleChangeRepo) ListOverdue(_ context.Context, before time.Time) ([]*entity.RoleChange, error) {
	r.mu.Lock()
	var list []*entity.RoleChange
	for _, rc := range r.rows {
		if !rc.HasLoggedOutSince && !rc.AutoLogoutScheduled && rc.ChangedAt.Before(before) {
			list = append(list, cloneRoleChange(rc))
		}
	}
	r.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ChangedAt.Before(list[j].ChangedAt) })
	return list, nil
}

func (r *RoleChangeRepo) DeleteOlderThan(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rc := range r.rows {
		if rc.ChangedAt.Before(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func sortByChangedAtDesc(list []*entity.RoleChange) {
	sort.Slice(list, func(i, j int) bool { return list[i].ChangedAt.After(list[j].ChangedAt) })
}
