package repository

import (
	"context"
	"time"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
)

// OwnerScope restringe un listado a los registros de un empleado; IncludeLegacy suma los
// registros sin creador.
type OwnerScope struct {
	EmployeeID    string
	IncludeLegacy bool
}

// RecordFilter filtros de listado. Status se compara contra el estado canónico
// (status, o approved legado cuando status es nulo). Scope nil = sin restricción de dueño.
type RecordFilter struct {
	Status   string
	Plant    string
	Campaign string
	From     *time.Time
	To       *time.Time
	Scope    *OwnerScope
}

// RecordRepository puerto de persistencia para las tres etapas. Las operaciones de escritura
// son atómicas sobre una sola fila; no hay transacciones entre registros.
type RecordRepository interface {
	Create(ctx context.Context, rec *entity.ProductionRecord) error
	GetByID(ctx context.Context, kind entity.RecordKind, id string) (*entity.ProductionRecord, error)
	List(ctx context.Context, kind entity.RecordKind, f RecordFilter, limit, offset int) ([]*entity.ProductionRecord, error)
	CountByStatus(ctx context.Context, kind entity.RecordKind, f RecordFilter) (map[string]int, error)
	// Update reemplaza los campos de dominio; no toca estado ni creador. Con onlyPending la
	// escritura exige que el registro siga pendiente. false = ninguna fila cambió.
	Update(ctx context.Context, rec *entity.ProductionRecord, onlyPending bool) (bool, error)
	// Delete borra el registro; onlyPending igual que en Update.
	Delete(ctx context.Context, kind entity.RecordKind, id string, onlyPending bool) (bool, error)
	// Approve pasa pending→approved solo si el registro sigue pendiente. false = no hubo cambio.
	Approve(ctx context.Context, kind entity.RecordKind, id, approverID string, at time.Time) (bool, error)
}
