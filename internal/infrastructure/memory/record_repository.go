package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/production"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
)

var _ repository.RecordRepository = (*RecordRepo)(nil)

// RecordRepo repositorio en memoria de registros de producción de las tres etapas.
type RecordRepo struct {
	mu   sync.RWMutex
	rows map[entity.RecordKind]map[string]*entity.ProductionRecord
}

// NewRecordRepository construye el repositorio vacío.
func NewRecordRepository() *RecordRepo {
	return &RecordRepo{rows: make(map[entity.RecordKind]map[string]*entity.ProductionRecord)}
}

func cloneRecord(rec *entity.ProductionRecord) *entity.ProductionRecord {
	c := *rec
	c.Measurements = make(map[string]decimal.Decimal, len(rec.Measurements))
	for k, v := range rec.Measurements {
		c.Measurements[k] = v
	}
	if rec.CreatedBy != nil {
		s := *rec.CreatedBy
		c.CreatedBy = &s
	}
	if rec.ApprovedBy != nil {
		s := *rec.ApprovedBy
		c.ApprovedBy = &s
	}
	if rec.ApprovedAt != nil {
		t := *rec.ApprovedAt
		c.ApprovedAt = &t
	}
	return &c
}

func (r *RecordRepo) table(kind entity.RecordKind) map[string]*entity.ProductionRecord {
	t, ok := r.rows[kind]
	if !ok {
		t = make(map[string]*entity.ProductionRecord)
		r.rows[kind] = t
	}
	return t
}

func pending(rec *entity.ProductionRecord) bool {
	return production.CanonicalStatus(rec.Status, rec.Approved) == entity.StatusPending
}

func (r *RecordRepo) Create(_ context.Context, rec *entity.ProductionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table(rec.Kind)[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *RecordRepo) GetByID(_ context.Context, kind entity.RecordKind, id string) (*entity.ProductionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rows[kind][id]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func matches(rec *entity.ProductionRecord, f repository.RecordFilter) bool {
	if f.Status != "" && production.CanonicalStatus(rec.Status, rec.Approved) != f.Status {
		return false
	}
	if f.Plant != "" && rec.Plant != f.Plant {
		return false
	}
	if f.Campaign != "" && rec.Campaign != f.Campaign {
		return false
	}
	if f.From != nil && rec.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && rec.Date.After(*f.To) {
		return false
	}
	if f.Scope != nil {
		creator := rec.CreatorID()
		if creator == "" {
			return f.Scope.IncludeLegacy
		}
		return creator == f.Scope.EmployeeID
	}
	return true
}

func (r *RecordRepo) List(_ context.Context, kind entity.RecordKind, f repository.RecordFilter, limit, offset int) ([]*entity.ProductionRecord, error) {
	r.mu.RLock()
	list := make([]*entity.ProductionRecord, 0)
	for _, rec := range r.rows[kind] {
		if matches(rec, f) {
			list = append(list, cloneRecord(rec))
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.After(list[j].Date)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return page(list, limit, offset), nil
}

func (r *RecordRepo) CountByStatus(_ context.Context, kind entity.RecordKind, f repository.RecordFilter) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]int{entity.StatusPending: 0, entity.StatusApproved: 0}
	for _, rec := range r.rows[kind] {
		if matches(rec, f) {
			out[production.CanonicalStatus(rec.Status, rec.Approved)]++
		}
	}
	return out, nil
}

func (r *RecordRepo) Update(_ context.Context, rec *entity.ProductionRecord, onlyPending bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[rec.Kind][rec.ID]
	if !ok || (onlyPending && !pending(cur)) {
		return false, nil
	}
	next := cloneRecord(rec)
	next.Status, next.Approved = cur.Status, cur.Approved
	next.CreatedBy, next.ApprovedBy, next.ApprovedAt = cur.CreatedBy, cur.ApprovedBy, cur.ApprovedAt
	next.CreatedAt = cur.CreatedAt
	r.rows[rec.Kind][rec.ID] = next
	return true, nil
}

func (r *RecordRepo) Delete(_ context.Context, kind entity.RecordKind, id string, onlyPending bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[kind][id]
	if !ok || (onlyPending && !pending(cur)) {
		return false, nil
	}
	delete(r.rows[kind], id)
	return true, nil
}

func (r *RecordRepo) Approve(_ context.Context, kind entity.RecordKind, id, approverID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[kind][id]
	if !ok || !pending(rec) {
		return false, nil
	}
	approver := approverID
	when := at
	rec.Status = entity.StatusApproved
	rec.Approved = true
	rec.ApprovedBy = &approver
	rec.ApprovedAt = &when
	rec.UpdatedAt = at
	return true, nil
}
