// Package production define los campos de dominio de cada etapa de proceso y la normalización
// del estado legado de aprobación.
package production

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
)

// MeasurementRule rango admitido para una medición numérica.
type MeasurementRule struct {
	Name     string
	Required bool
	Positive bool // estrictamente > 0
	Min      *decimal.Decimal
	Max      *decimal.Decimal
}

// Schema describe una etapa: qué campos de texto exige, qué mediciones acepta y si los
// operadores ven registros legados sin creador.
type Schema struct {
	Kind                  entity.RecordKind
	RequireStage          bool
	RequireTank           bool
	RequireLevelIndicator bool
	Measurements          []MeasurementRule
	LegacyVisible         bool
}

func bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

var (
	Fermentation = Schema{
		Kind:         entity.KindFermentation,
		RequireStage: true,
		RequireTank:  true,
		Measurements: []MeasurementRule{
			{Name: "volume_l", Required: true, Positive: true},
			{Name: "temperature_c", Required: true, Min: bound(-10), Max: bound(100)},
			{Name: "ph", Required: true, Min: bound(0), Max: bound(14)},
			{Name: "brix", Min: bound(0), Max: bound(100)},
			{Name: "density", Positive: true},
		},
		LegacyVisible: true,
	}

	Extraction = Schema{
		Kind:         entity.KindExtraction,
		RequireStage: true,
		Measurements: []MeasurementRule{
			{Name: "input_kg", Required: true, Positive: true},
			{Name: "output_kg", Required: true, Min: bound(0)},
			{Name: "yield_pct", Min: bound(0), Max: bound(100)},
			{Name: "temperature_c", Min: bound(-10), Max: bound(150)},
			{Name: "ph", Min: bound(0), Max: bound(14)},
			{Name: "pressure_bar", Min: bound(0)},
		},
		LegacyVisible: true,
	}

	// Packaging no admite registros legados sin creador en la vista de operadores.
	Packaging = Schema{
		Kind: entity.KindPackaging,
		Measurements: []MeasurementRule{
			{Name: "units", Required: true, Positive: true},
			{Name: "boxes", Min: bound(0)},
			{Name: "rejected_units", Min: bound(0)},
			{Name: "net_weight_kg", Positive: true},
		},
		LegacyVisible: false,
	}
)

// Schemas todas las etapas en orden de proceso.
func Schemas() []Schema {
	return []Schema{Fermentation, Extraction, Packaging}
}

// ByKind busca el esquema de una etapa.
func ByKind(kind entity.RecordKind) (Schema, bool) {
	for _, s := range Schemas() {
		if s.Kind == kind {
			return s, true
		}
	}
	return Schema{}, false
}

// Rule devuelve la regla de una medición.
func (s Schema) Rule(name string) (MeasurementRule, bool) {
	for _, r := range s.Measurements {
		if r.Name == name {
			return r, true
		}
	}
	return MeasurementRule{}, false
}

// Validate verifica campos requeridos y rangos. Devuelve el primer *domain.ValidationError.
func (s Schema) Validate(rec *entity.ProductionRecord) error {
	if rec.Date.IsZero() {
		return domain.Invalid("date", "es requerido")
	}
	required := []struct {
		field string
		value string
		need  bool
	}{
		{"plant", rec.Plant, true},
		{"product", rec.Product, true},
		{"campaign", rec.Campaign, true},
		{"stage", rec.Stage, s.RequireStage},
		{"tank", rec.Tank, s.RequireTank},
		{"level_indicator", rec.LevelIndicator, s.RequireLevelIndicator},
	}
	for _, f := range required {
		if f.need && strings.TrimSpace(f.value) == "" {
			return domain.Invalid(f.field, "es requerido")
		}
	}

	names := make([]string, 0, len(rec.Measurements))
	for name := range rec.Measurements {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rule, ok := s.Rule(name)
		if !ok {
			return domain.Invalid(name, "medición no admitida en %s", s.Kind)
		}
		if err := rule.check(rec.Measurements[name]); err != nil {
			return err
		}
	}
	for _, rule := range s.Measurements {
		if _, ok := rec.Measurements[rule.Name]; rule.Required && !ok {
			return domain.Invalid(rule.Name, "es requerido")
		}
	}
	return nil
}

func (r MeasurementRule) check(v decimal.Decimal) error {
	if r.Positive && !v.IsPositive() {
		return domain.Invalid(r.Name, "debe ser mayor que 0")
	}
	if r.Min != nil && v.LessThan(*r.Min) {
		return domain.Invalid(r.Name, "debe ser mayor o igual a %s", r.Min.String())
	}
	if r.Max != nil && v.GreaterThan(*r.Max) {
		return domain.Invalid(r.Name, "debe ser menor o igual a %s", r.Max.String())
	}
	return nil
}
