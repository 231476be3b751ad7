package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind etapa de proceso a la que pertenece un registro.
type RecordKind string

const (
	KindFermentation RecordKind = "fermentation"
	KindExtraction   RecordKind = "extraction"
	KindPackaging    RecordKind = "packaging"
)

// Estados de aprobación. approved es terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// ProductionRecord registro de lote de una etapa. Los campos de dominio que no aplican a la
// etapa quedan vacíos; las mediciones numéricas viven en Measurements.
type ProductionRecord struct {
	ID             string
	Kind           RecordKind
	Date           time.Time
	Plant          string
	Product        string
	Campaign       string
	Stage          string
	Tank           string
	LevelIndicator string
	Measurements   map[string]decimal.Decimal
	Notes          string
	Status         string // "" en datos legados anteriores al campo
	Approved       bool   // campo legado, espejo de Status
	CreatedBy      *string
	ApprovedBy     *string
	ApprovedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreatorID devuelve el id del creador o "" si el registro no tiene creador (datos legados).
func (r *ProductionRecord) CreatorID() string {
	if r == nil || r.CreatedBy == nil {
		return ""
	}
	return *r.CreatedBy
}
