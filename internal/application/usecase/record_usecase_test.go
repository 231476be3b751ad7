package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/application/usecase"
	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/policy"
	"github.com/jhoicas/produccion-api/internal/domain/production"
	"github.com/jhoicas/produccion-api/internal/infrastructure/memory"
)

type recordFixture struct {
	employees *memory.EmployeeRepo
	records   *memory.RecordRepo
}

func newRecordFixture(t *testing.T) *recordFixture {
	t.Helper()
	f := &recordFixture{employees: memory.NewEmployeeRepository(), records: memory.NewRecordRepository()}
	for _, e := range []struct{ id, role string }{
		{"op-a", entity.RoleOperator},
		{"op-b", entity.RoleOperator},
		{"sup-1", entity.RoleSupervisor},
		{"sup-2", entity.RoleSupervisor},
		{"hr-1", entity.RoleHR},
	} {
		now := time.Now()
		require.NoError(t, f.employees.Create(context.Background(), &entity.Employee{
			ID: e.id, Name: e.id, Email: e.id + "@planta.com", Role: e.role,
			Department: entity.DepartmentFermentation, IsActive: true, CreatedAt: now, UpdatedAt: now,
		}))
	}
	return f
}

func (f *recordFixture) store(schema production.Schema) *usecase.RecordUseCase {
	return usecase.NewRecordUseCase(schema, f.records, f.employees, nil, nil)
}

func actor(id, role string) policy.Actor { return policy.Actor{ID: id, Role: role} }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fermentationReq() dto.RecordRequest {
	return dto.RecordRequest{
		Date: "2026-03-10", Plant: "Planta Norte", Product: "Cacao", Campaign: "2026-A",
		Stage: "primaria", Tank: "T-01",
		Measurements: map[string]decimal.Decimal{"volume_l": d("1200"), "temperature_c": d("28.5"), "ph": d("4.2")},
	}
}

func packagingReq() dto.RecordRequest {
	return dto.RecordRequest{
		Date: "2026-03-10", Plant: "Planta Norte", Product: "Cacao", Campaign: "2026-A",
		Measurements: map[string]decimal.Decimal{"units": d("480")},
	}
}

func TestRecord_EscenarioOperadoresYAprobacion(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Fermentation)
	ctx := context.Background()
	opA, opB, sup := actor("op-a", "operator"), actor("op-b", "operator"), actor("sup-1", "supervisor")

	rec, err := uc.Create(ctx, opA, fermentationReq())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, rec.Status)
	assert.False(t, rec.Approved)
	require.NotNil(t, rec.CreatedBy)
	assert.Equal(t, "op-a", rec.CreatedBy.ID)
	assert.Equal(t, entity.RoleOperator, rec.CreatedBy.Role)

	_, err = uc.Update(ctx, opB, rec.ID, fermentationReq())
	var perr *domain.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonNotYourRecord, perr.Reason)

	approved, err := uc.Approve(ctx, sup, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)
	assert.True(t, approved.Approved)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "sup-1", *approved.ApprovedBy)

	err = uc.Delete(ctx, opA, rec.ID)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonAlreadyApproved, perr.Reason)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = uc.Update(ctx, opA, rec.ID, fermentationReq())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRecord_AprobarEsIdempotente(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Extraction)
	ctx := context.Background()

	rec, err := uc.Create(ctx, actor("op-a", "operator"), dto.RecordRequest{
		Date: "2026-03-11", Plant: "P1", Product: "Aceite", Campaign: "C1", Stage: "prensado",
		Measurements: map[string]decimal.Decimal{"input_kg": d("100"), "output_kg": d("40")},
	})
	require.NoError(t, err)

	first, err := uc.Approve(ctx, actor("sup-1", "supervisor"), rec.ID)
	require.NoError(t, err)
	second, err := uc.Approve(ctx, actor("sup-2", "supervisor"), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.ApprovedBy, *second.ApprovedBy, "la segunda aprobación no modifica el registro")
}

func TestRecord_AprobacionConcurrente(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Fermentation)
	ctx := context.Background()

	rec, err := uc.Create(ctx, actor("op-a", "operator"), fermentationReq())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Approve(ctx, actor("sup-1", "supervisor"), rec.ID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	got, err := uc.Get(ctx, actor("sup-1", "supervisor"), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)
}

func TestRecord_OperadorNoAprueba(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Fermentation)
	ctx := context.Background()
	rec, err := uc.Create(ctx, actor("op-a", "operator"), fermentationReq())
	require.NoError(t, err)

	_, err = uc.Approve(ctx, actor("op-a", "operator"), rec.ID)
	var perr *domain.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonInsufficientRole, perr.Reason)
}

func TestRecord_PrivilegiadosSobreRegistrosAjenos(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Fermentation)
	ctx := context.Background()
	sup1, sup2 := actor("sup-1", "supervisor"), actor("sup-2", "supervisor")

	byOperator, err := uc.Create(ctx, actor("op-a", "operator"), fermentationReq())
	require.NoError(t, err)
	_, err = uc.Approve(ctx, sup1, byOperator.ID)
	require.NoError(t, err)

	// Registro de operador: editable por privilegiados aunque esté aprobado; el estado no cambia.
	req := fermentationReq()
	req.Notes = "corregido"
	edited, err := uc.Update(ctx, sup2, byOperator.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "corregido", edited.Notes)
	assert.Equal(t, entity.StatusApproved, edited.Status)

	bySupervisor, err := uc.Create(ctx, sup1, fermentationReq())
	require.NoError(t, err)
	err = uc.Delete(ctx, sup2, bySupervisor.ID)
	var perr *domain.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonNotYourRecord, perr.Reason)

	require.NoError(t, uc.Delete(ctx, sup1, bySupervisor.ID))
	_, err = uc.Get(ctx, sup1, bySupervisor.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecord_CreadorLegadoYColgante(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Fermentation)
	ctx := context.Background()
	now := time.Now()
	ghost := "borrado"

	legacy := &entity.ProductionRecord{ID: "legacy", Kind: entity.KindFermentation, Date: now, Plant: "P", Product: "X", Campaign: "C", Approved: true, CreatedAt: now, UpdatedAt: now}
	dangling := &entity.ProductionRecord{ID: "dangling", Kind: entity.KindFermentation, Date: now, Plant: "P", Product: "X", Campaign: "C", Status: entity.StatusPending, CreatedBy: &ghost, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.records.Create(ctx, legacy))
	require.NoError(t, f.records.Create(ctx, dangling))

	var perr *domain.PermissionError
	err := uc.Delete(ctx, actor("hr-1", "hr"), "legacy")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonNoCreator, perr.Reason)

	err = uc.Delete(ctx, actor("hr-1", "hr"), "dangling")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonCreatorNotFound, perr.Reason)

	// Registro legado: approved=true sin status se normaliza a approved.
	got, err := uc.Get(ctx, actor("op-a", "operator"), "legacy")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)
	assert.True(t, got.Approved)
	assert.Nil(t, got.CreatedBy)

	// Aprobar un registro legado ya aprobado es un éxito sin cambios.
	_, err = uc.Approve(ctx, actor("sup-1", "supervisor"), "legacy")
	assert.NoError(t, err)
}

func TestRecord_NoEncontrado(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Extraction)
	ctx := context.Background()
	sup := actor("sup-1", "supervisor")

	_, err := uc.Get(ctx, sup, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.Update(ctx, sup, "no-existe", dto.RecordRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, uc.Delete(ctx, sup, "no-existe"), domain.ErrNotFound)
	_, err = uc.Approve(ctx, sup, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecord_Validacion(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Fermentation)
	ctx := context.Background()
	op := actor("op-a", "operator")

	req := fermentationReq()
	req.Measurements["ph"] = d("14.5")
	_, err := uc.Create(ctx, op, req)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ph", verr.Field)

	req = fermentationReq()
	req.Date = "10/03/2026"
	_, err = uc.Create(ctx, op, req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date", verr.Field)

	req = fermentationReq()
	req.Tank = ""
	_, err = uc.Create(ctx, op, req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tank", verr.Field)

	_, err = uc.Create(ctx, policy.Actor{}, fermentationReq())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRecord_VisibilidadPackagingEstricta(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()
	now := time.Now()
	uc := f.store(production.Packaging)
	opA, opB := actor("op-a", "operator"), actor("op-b", "operator")

	own, err := uc.Create(ctx, opA, packagingReq())
	require.NoError(t, err)
	require.NoError(t, f.records.Create(ctx, &entity.ProductionRecord{
		ID: "legacy-pkg", Kind: entity.KindPackaging, Date: now, Plant: "P", Product: "X", Campaign: "C", CreatedAt: now, UpdatedAt: now,
	}))

	list, err := uc.List(ctx, opB, dto.RecordListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Items, "un operador no ve registros de packaging ajenos ni legados")

	_, err = uc.Get(ctx, opB, own.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err = uc.List(ctx, opA, dto.RecordListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, own.ID, list.Items[0].ID)

	all, err := uc.List(ctx, actor("sup-1", "supervisor"), dto.RecordListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
}

func TestRecord_VisibilidadLegadaFermentacion(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()
	now := time.Now()
	uc := f.store(production.Fermentation)

	_, err := uc.Create(ctx, actor("op-a", "operator"), fermentationReq())
	require.NoError(t, err)
	require.NoError(t, f.records.Create(ctx, &entity.ProductionRecord{
		ID: "legacy-fer", Kind: entity.KindFermentation, Date: now, Plant: "P", Product: "X", Campaign: "C", CreatedAt: now, UpdatedAt: now,
	}))

	list, err := uc.List(ctx, actor("op-b", "operator"), dto.RecordListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "legacy-fer", list.Items[0].ID)
	assert.Equal(t, entity.StatusPending, list.Items[0].Status)
}

func TestRecord_FiltrosYResumen(t *testing.T) {
	f := newRecordFixture(t)
	uc := f.store(production.Fermentation)
	ctx := context.Background()
	opA, sup := actor("op-a", "operator"), actor("sup-1", "supervisor")

	first, err := uc.Create(ctx, opA, fermentationReq())
	require.NoError(t, err)
	req := fermentationReq()
	req.Date = "2026-04-01"
	_, err = uc.Create(ctx, opA, req)
	require.NoError(t, err)
	_, err = uc.Create(ctx, actor("op-b", "operator"), fermentationReq())
	require.NoError(t, err)
	_, err = uc.Approve(ctx, sup, first.ID)
	require.NoError(t, err)

	pending, err := uc.List(ctx, opA, dto.RecordListRequest{Status: entity.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending.Items, 1)

	april, err := uc.List(ctx, sup, dto.RecordListRequest{From: "2026-03-15"})
	require.NoError(t, err)
	require.Len(t, april.Items, 1)
	assert.Equal(t, "2026-04-01", april.Items[0].Date)

	_, err = uc.List(ctx, sup, dto.RecordListRequest{Status: "rechazado"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	mine, err := uc.Summary(ctx, opA)
	require.NoError(t, err)
	assert.Equal(t, dto.RecordSummaryResponse{Kind: "fermentation", Pending: 1, Approved: 1, Total: 2}, *mine)

	everything, err := uc.Summary(ctx, sup)
	require.NoError(t, err)
	assert.Equal(t, 3, everything.Total)
}

// approvingRepo simula una aprobación que llega entre la lectura del registro y la escritura.
type approvingRepo struct {
	*memory.RecordRepo
	approver string
}

func (r *approvingRepo) approveFirst(ctx context.Context, kind entity.RecordKind, id string) {
	_, _ = r.RecordRepo.Approve(ctx, kind, id, r.approver, time.Now())
}

func (r *approvingRepo) Update(ctx context.Context, rec *entity.ProductionRecord, onlyPending bool) (bool, error) {
	r.approveFirst(ctx, rec.Kind, rec.ID)
	return r.RecordRepo.Update(ctx, rec, onlyPending)
}

func (r *approvingRepo) Delete(ctx context.Context, kind entity.RecordKind, id string, onlyPending bool) (bool, error) {
	r.approveFirst(ctx, kind, id)
	return r.RecordRepo.Delete(ctx, kind, id, onlyPending)
}

func TestRecord_AprobacionConcurrenteBloqueaEdicionDelOperador(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()
	opA := actor("op-a", "operator")

	rec, err := f.store(production.Fermentation).Create(ctx, opA, fermentationReq())
	require.NoError(t, err)

	racing := usecase.NewRecordUseCase(production.Fermentation, &approvingRepo{RecordRepo: f.records, approver: "sup-1"}, f.employees, nil, nil)

	req := fermentationReq()
	req.Notes = "editado tras aprobar"
	_, err = racing.Update(ctx, opA, rec.ID, req)
	var perr *domain.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonAlreadyApproved, perr.Reason)

	stored, err := f.records.GetByID(ctx, entity.KindFermentation, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusApproved, stored.Status)
	assert.Empty(t, stored.Notes, "la edición no se aplicó sobre el registro aprobado")

	err = racing.Delete(ctx, opA, rec.ID)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ReasonAlreadyApproved, perr.Reason)

	stored, err = f.records.GetByID(ctx, entity.KindFermentation, rec.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored, "el registro aprobado sigue existiendo")
}

func TestRecord_PrivilegiadoEditaAunqueSeApruebeEnParalelo(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.store(production.Fermentation).Create(ctx, actor("op-a", "operator"), fermentationReq())
	require.NoError(t, err)

	racing := usecase.NewRecordUseCase(production.Fermentation, &approvingRepo{RecordRepo: f.records, approver: "sup-2"}, f.employees, nil, nil)
	req := fermentationReq()
	req.Notes = "corrección del supervisor"
	out, err := racing.Update(ctx, actor("sup-1", "supervisor"), rec.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "corrección del supervisor", out.Notes)
	assert.Equal(t, entity.StatusApproved, out.Status)
}
