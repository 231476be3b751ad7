package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/policy"
	"github.com/jhoicas/produccion-api/internal/domain/production"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
	"github.com/jhoicas/produccion-api/pkg/logger"
	"github.com/jhoicas/produccion-api/pkg/metrics"
)

const dateLayout = "2006-01-02"

// RecordUseCase almacén de registros de una etapa. Las tres etapas comparten esta
// implementación y el motor de permisos; solo cambia el esquema.
type RecordUseCase struct {
	schema    production.Schema
	records   repository.RecordRepository
	employees repository.EmployeeRepository
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewRecordUseCase construye el almacén para schema.
func NewRecordUseCase(schema production.Schema, records repository.RecordRepository, employees repository.EmployeeRepository, log *logger.Logger, m *metrics.Metrics) *RecordUseCase {
	return &RecordUseCase{
		schema:    schema,
		records:   records,
		employees: employees,
		log:       logger.OrNop(log).Component("records." + string(schema.Kind)),
		metrics:   m,
		now:       time.Now,
	}
}

// Kind etapa que atiende este almacén.
func (uc *RecordUseCase) Kind() entity.RecordKind { return uc.schema.Kind }

// Create registra un lote nuevo: estado pending y creador = actor.
func (uc *RecordUseCase) Create(ctx context.Context, actor policy.Actor, in dto.RecordRequest) (*dto.RecordResponse, error) {
	if err := uc.authorize(actor, policy.Subject{}, policy.ActionCreate); err != nil {
		return nil, err
	}
	rec, err := uc.fromRequest(in)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	creator := actor.ID
	rec.ID = uuid.New().String()
	rec.Status = entity.StatusPending
	rec.Approved = false
	rec.CreatedBy = &creator
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := uc.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return uc.respondOne(ctx, rec)
}

// Get devuelve el registro si es visible para el actor; si no, ErrNotFound.
func (uc *RecordUseCase) Get(ctx context.Context, actor policy.Actor, id string) (*dto.RecordResponse, error) {
	rec, err := uc.records.GetByID(ctx, uc.schema.Kind, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || !policy.Visible(actor, rec.CreatorID(), uc.schema.LegacyVisible) {
		return nil, domain.ErrNotFound
	}
	return uc.respondOne(ctx, rec)
}

// List listado paginado con el filtro de visibilidad aplicado en el repositorio.
func (uc *RecordUseCase) List(ctx context.Context, actor policy.Actor, in dto.RecordListRequest) (*dto.RecordListResponse, error) {
	in.DefaultPage()
	f, err := uc.filter(actor, in)
	if err != nil {
		return nil, err
	}
	list, err := uc.records.List(ctx, uc.schema.Kind, f, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	items, err := uc.respond(ctx, list)
	if err != nil {
		return nil, err
	}
	return &dto.RecordListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset},
	}, nil
}

// Summary conteo por estado de los registros visibles para el actor.
func (uc *RecordUseCase) Summary(ctx context.Context, actor policy.Actor) (*dto.RecordSummaryResponse, error) {
	f, err := uc.filter(actor, dto.RecordListRequest{})
	if err != nil {
		return nil, err
	}
	counts, err := uc.records.CountByStatus(ctx, uc.schema.Kind, f)
	if err != nil {
		return nil, err
	}
	pending, approved := counts[entity.StatusPending], counts[entity.StatusApproved]
	return &dto.RecordSummaryResponse{
		Kind:     string(uc.schema.Kind),
		Pending:  pending,
		Approved: approved,
		Total:    pending + approved,
	}, nil
}

// Update reemplaza los campos de dominio. El estado no cambia.
func (uc *RecordUseCase) Update(ctx context.Context, actor policy.Actor, id string, in dto.RecordRequest) (*dto.RecordResponse, error) {
	cur, err := uc.records.GetByID(ctx, uc.schema.Kind, id)
	if err != nil {
		return nil, err
	}
	subj, err := uc.subject(ctx, cur)
	if err != nil {
		return nil, err
	}
	if err := uc.authorize(actor, subj, policy.ActionEdit); err != nil {
		return nil, err
	}
	rec, err := uc.fromRequest(in)
	if err != nil {
		return nil, err
	}
	rec.ID = cur.ID
	rec.UpdatedAt = uc.now()
	updated, err := uc.records.Update(ctx, rec, onlyPending(actor))
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, uc.lostRace(ctx, actor, id, policy.ActionEdit)
	}
	return uc.reload(ctx, id)
}

// Delete borra el registro si el motor de permisos lo admite.
func (uc *RecordUseCase) Delete(ctx context.Context, actor policy.Actor, id string) error {
	cur, err := uc.records.GetByID(ctx, uc.schema.Kind, id)
	if err != nil {
		return err
	}
	subj, err := uc.subject(ctx, cur)
	if err != nil {
		return err
	}
	if err := uc.authorize(actor, subj, policy.ActionDelete); err != nil {
		return err
	}
	deleted, err := uc.records.Delete(ctx, uc.schema.Kind, id, onlyPending(actor))
	if err != nil {
		return err
	}
	if !deleted {
		return uc.lostRace(ctx, actor, id, policy.ActionDelete)
	}
	uc.log.Info().Str("record_id", id).Str("by", actor.ID).Msg("registro eliminado")
	return nil
}

// Approve transición pending→approved. Re-aprobar es un éxito sin cambios; si otra petición
// aprueba primero, el resultado es el mismo.
func (uc *RecordUseCase) Approve(ctx context.Context, actor policy.Actor, id string) (*dto.RecordResponse, error) {
	cur, err := uc.records.GetByID(ctx, uc.schema.Kind, id)
	if err != nil {
		return nil, err
	}
	subj, err := uc.subject(ctx, cur)
	if err != nil {
		return nil, err
	}
	d := policy.Evaluate(actor, subj, policy.ActionApprove)
	uc.observe(actor, policy.ActionApprove, d)
	if err := d.Err(); err != nil {
		return nil, err
	}
	if d.NoOp {
		return uc.respondOne(ctx, cur)
	}
	if _, err := uc.records.Approve(ctx, uc.schema.Kind, id, actor.ID, uc.now()); err != nil {
		return nil, err
	}
	// Sin cambio = una aprobación concurrente ganó o el registro se borró; la relectura decide.
	rec, err := uc.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != entity.StatusApproved {
		return nil, domain.ErrNotFound
	}
	uc.log.Info().Str("record_id", id).Str("by", actor.ID).Msg("registro aprobado")
	return rec, nil
}

// onlyPending un operador solo escribe sobre registros pendientes; la condición viaja a la
// escritura para que una aprobación concurrente no quede pisada.
func onlyPending(actor policy.Actor) bool {
	return !policy.IsPrivileged(actor.Role)
}

// lostRace la escritura condicionada no encontró la fila: se relee y se vuelve a evaluar para
// devolver el motivo real (ya aprobado o borrado).
func (uc *RecordUseCase) lostRace(ctx context.Context, actor policy.Actor, id string, action policy.Action) error {
	cur, err := uc.records.GetByID(ctx, uc.schema.Kind, id)
	if err != nil {
		return err
	}
	subj, err := uc.subject(ctx, cur)
	if err != nil {
		return err
	}
	if err := uc.authorize(actor, subj, action); err != nil {
		return err
	}
	return domain.ErrNotFound
}

func (uc *RecordUseCase) authorize(actor policy.Actor, subj policy.Subject, action policy.Action) error {
	d := policy.Evaluate(actor, subj, action)
	uc.observe(actor, action, d)
	return d.Err()
}

func (uc *RecordUseCase) observe(actor policy.Actor, action policy.Action, d policy.Decision) {
	uc.metrics.ObservePolicy(string(action), d.Allowed)
	if !d.Allowed {
		uc.log.Debug().Str("employee_id", actor.ID).Str("action", string(action)).
			Str("reason", d.Reason).Int("status", d.StatusCode).Msg("acción denegada")
	}
}

// subject resuelve una sola vez el creador del registro (referencia débil, puede colgar).
func (uc *RecordUseCase) subject(ctx context.Context, rec *entity.ProductionRecord) (policy.Subject, error) {
	if rec == nil {
		return policy.Subject{}, nil
	}
	subj := policy.Subject{
		Exists: true,
		Status: production.CanonicalStatus(rec.Status, rec.Approved),
	}
	if rec.CreatedBy == nil {
		return subj, nil
	}
	owner := &policy.Owner{ID: *rec.CreatedBy}
	if owner.ID != "" {
		e, err := uc.employees.GetByID(ctx, owner.ID)
		if err != nil {
			return subj, err
		}
		if e != nil {
			owner.Role, owner.Name, owner.Found = e.Role, e.Name, true
		}
	}
	subj.Creator = owner
	return subj, nil
}

func (uc *RecordUseCase) filter(actor policy.Actor, in dto.RecordListRequest) (repository.RecordFilter, error) {
	f := repository.RecordFilter{
		Status:   in.Status,
		Plant:    strings.TrimSpace(in.Plant),
		Campaign: strings.TrimSpace(in.Campaign),
	}
	switch f.Status {
	case "", entity.StatusPending, entity.StatusApproved:
	default:
		return f, domain.Invalid("status", "estado desconocido %q", f.Status)
	}
	if in.From != "" {
		t, err := time.Parse(dateLayout, in.From)
		if err != nil {
			return f, domain.Invalid("from", "formato de fecha inválido, use AAAA-MM-DD")
		}
		f.From = &t
	}
	if in.To != "" {
		t, err := time.Parse(dateLayout, in.To)
		if err != nil {
			return f, domain.Invalid("to", "formato de fecha inválido, use AAAA-MM-DD")
		}
		f.To = &t
	}
	if !policy.IsPrivileged(actor.Role) {
		f.Scope = &repository.OwnerScope{EmployeeID: actor.ID, IncludeLegacy: uc.schema.LegacyVisible}
	}
	return f, nil
}

func (uc *RecordUseCase) fromRequest(in dto.RecordRequest) (*entity.ProductionRecord, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	rec := &entity.ProductionRecord{
		Kind:           uc.schema.Kind,
		Date:           date,
		Plant:          strings.TrimSpace(in.Plant),
		Product:        strings.TrimSpace(in.Product),
		Campaign:       strings.TrimSpace(in.Campaign),
		Stage:          strings.TrimSpace(in.Stage),
		Tank:           strings.TrimSpace(in.Tank),
		LevelIndicator: strings.TrimSpace(in.LevelIndicator),
		Measurements:   in.Measurements,
		Notes:          strings.TrimSpace(in.Notes),
	}
	if err := uc.schema.Validate(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.Invalid("date", "formato de fecha inválido, use AAAA-MM-DD")
	}
	return t.UTC().Truncate(24 * time.Hour), nil
}

func (uc *RecordUseCase) reload(ctx context.Context, id string) (*dto.RecordResponse, error) {
	rec, err := uc.records.GetByID(ctx, uc.schema.Kind, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return uc.respondOne(ctx, rec)
}

func (uc *RecordUseCase) respondOne(ctx context.Context, rec *entity.ProductionRecord) (*dto.RecordResponse, error) {
	items, err := uc.respond(ctx, []*entity.ProductionRecord{rec})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// respond normaliza los registros y resuelve sus creadores con una sola consulta.
func (uc *RecordUseCase) respond(ctx context.Context, list []*entity.ProductionRecord) ([]dto.RecordResponse, error) {
	ids := make([]string, 0, len(list))
	for _, rec := range list {
		if id := rec.CreatorID(); id != "" {
			ids = append(ids, id)
		}
	}
	owners := map[string]*entity.Employee{}
	if len(ids) > 0 {
		var err error
		if owners, err = uc.employees.GetMany(ctx, ids); err != nil {
			return nil, err
		}
	}

	out := make([]dto.RecordResponse, 0, len(list))
	for _, rec := range list {
		production.Normalize(rec)
		r := dto.RecordResponse{
			ID:             rec.ID,
			Kind:           string(rec.Kind),
			Date:           rec.Date.Format(dateLayout),
			Plant:          rec.Plant,
			Product:        rec.Product,
			Campaign:       rec.Campaign,
			Stage:          rec.Stage,
			Tank:           rec.Tank,
			LevelIndicator: rec.LevelIndicator,
			Measurements:   rec.Measurements,
			Notes:          rec.Notes,
			Status:         rec.Status,
			Approved:       rec.Approved,
			ApprovedBy:     rec.ApprovedBy,
			ApprovedAt:     rec.ApprovedAt,
			CreatedAt:      rec.CreatedAt,
			UpdatedAt:      rec.UpdatedAt,
		}
		if id := rec.CreatorID(); id != "" {
			r.CreatedBy = &dto.OwnerResponse{ID: id}
			if e, ok := owners[id]; ok {
				r.CreatedBy.Name, r.CreatedBy.Role = e.Name, e.Role
			}
		}
		if r.Measurements == nil {
			r.Measurements = map[string]decimal.Decimal{}
		}
		out = append(out, r)
	}
	return out, nil
}
