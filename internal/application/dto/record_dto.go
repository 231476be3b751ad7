package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordRequest campos de dominio de un registro. Date admite YYYY-MM-DD o RFC3339.
type RecordRequest struct {
	Date           string                     `json:"date"`
	Plant          string                     `json:"plant"`
	Product        string                     `json:"product"`
	Campaign       string                     `json:"campaign"`
	Stage          string                     `json:"stage,omitempty"`
	Tank           string                     `json:"tank,omitempty"`
	LevelIndicator string                     `json:"level_indicator,omitempty"`
	Measurements   map[string]decimal.Decimal `json:"measurements"`
	Notes          string                     `json:"notes,omitempty"`
}

// RecordListRequest filtros del listado. From/To en YYYY-MM-DD.
type RecordListRequest struct {
	PageRequest
	Status   string `query:"status"`
	Plant    string `query:"plant"`
	Campaign string `query:"campaign"`
	From     string `query:"from"`
	To       string `query:"to"`
}

// OwnerResponse creador resuelto del registro.
type OwnerResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// RecordResponse registro normalizado: status es la fuente de verdad y approved su espejo.
type RecordResponse struct {
	ID             string                     `json:"id"`
	Kind           string                     `json:"kind"`
	Date           string                     `json:"date"`
	Plant          string                     `json:"plant"`
	Product        string                     `json:"product"`
	Campaign       string                     `json:"campaign"`
	Stage          string                     `json:"stage,omitempty"`
	Tank           string                     `json:"tank,omitempty"`
	LevelIndicator string                     `json:"level_indicator,omitempty"`
	Measurements   map[string]decimal.Decimal `json:"measurements"`
	Notes          string                     `json:"notes,omitempty"`
	Status         string                     `json:"status"`
	Approved       bool                       `json:"approved"`
	CreatedBy      *OwnerResponse             `json:"created_by"`
	ApprovedBy     *string                    `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time                 `json:"approved_at,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// RecordListResponse página de registros.
type RecordListResponse struct {
	Items []RecordResponse `json:"items"`
	Page  PageResponse     `json:"page"`
}

// RecordSummaryResponse conteo por estado de los registros visibles para el actor.
type RecordSummaryResponse struct {
	Kind     string `json:"kind"`
	Pending  int    `json:"pending"`
	Approved int    `json:"approved"`
	Total    int    `json:"total"`
}
