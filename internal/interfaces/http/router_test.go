package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/produccion-api/internal/application/auth"
	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/application/rolechange"
	"github.com/jhoicas/produccion-api/internal/application/usecase"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/production"
	"github.com/jhoicas/produccion-api/internal/infrastructure/memory"
	"github.com/jhoicas/produccion-api/internal/infrastructure/scheduler"
	"github.com/jhoicas/produccion-api/internal/infrastructure/sse"
	apphttp "github.com/jhoicas/produccion-api/internal/interfaces/http"
)

type apiFixture struct {
	app       *fiber.App
	employees *memory.EmployeeRepo
	sched     *scheduler.Memory
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	employees := memory.NewEmployeeRepository()
	records := memory.NewRecordRepository()
	hub := sse.NewHub(nil, nil)
	sched := scheduler.NewMemory()
	tracker := rolechange.NewTracker(memory.NewRoleChangeRepository(), sched, hub, rolechange.Config{
		Grace: 24 * time.Hour, Countdown: 10 * time.Second, Retention: 30 * 24 * time.Hour,
	}, nil, nil)
	require.NoError(t, tracker.Start())
	t.Cleanup(tracker.Stop)

	deps := apphttp.RouterDeps{
		AuthUC:     auth.NewAuthUseCase(employees, tracker, auth.JWTConfig{Secret: testJWTSecret, TTL: time.Hour, Issuer: testIssuer}, nil),
		Sessions:   auth.NewSessionValidator(employees, testJWTSecret),
		EmployeeUC: usecase.NewEmployeeUseCase(employees, tracker, nil),
		Hub:        hub,
	}
	for _, s := range production.Schemas() {
		deps.Records = append(deps.Records, usecase.NewRecordUseCase(s, records, employees, nil, nil))
	}

	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler(nil)})
	apphttp.Router(app, deps)
	return &apiFixture{app: app, employees: employees, sched: sched}
}

func (f *apiFixture) call(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func fermentationBody() map[string]any {
	return map[string]any{
		"date": "2026-03-10", "plant": "Planta Norte", "product": "Cacao", "campaign": "2026-A",
		"stage": "primaria", "tank": "T-01",
		"measurements": map[string]any{"volume_l": "1200", "temperature_c": "28.5", "ph": "4.2"},
	}
}

func TestAPI_RegistroYLogin(t *testing.T) {
	f := newAPI(t)

	resp, body := f.call(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Name: "Ana", Email: "Ana@Planta.com", Password: "secreto123", Department: entity.DepartmentFermentation,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, entity.RoleOperator, body["role"])
	assert.Equal(t, "ana@planta.com", body["email"])
	assert.Nil(t, body["password"])

	resp, body = f.call(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Name: "Otra", Email: "ana@planta.com", Password: "secreto123", Department: entity.DepartmentFermentation,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "EMAIL_EXISTS", body["code"])

	resp, body = f.call(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "ana@planta.com", Password: "otra-cosa"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	resp, body = f.call(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "ANA@planta.com", Password: "secreto123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	resp, body = f.call(t, http.MethodGet, "/api/auth/me", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ana", body["name"])

	resp, _ = f.call(t, http.MethodPost, "/api/auth/logout", "Bearer "+token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_CicloDeVidaDeRegistro(t *testing.T) {
	f := newAPI(t)
	seedEmployee(t, f.employees, "op-a", entity.RoleOperator, entity.DepartmentFermentation)
	seedEmployee(t, f.employees, "op-b", entity.RoleOperator, entity.DepartmentFermentation)
	seedEmployee(t, f.employees, "sup", entity.RoleSupervisor, entity.DepartmentFermentation)
	opA := tokenFor(t, "op-a", entity.RoleOperator, entity.DepartmentFermentation)
	opB := tokenFor(t, "op-b", entity.RoleOperator, entity.DepartmentFermentation)
	sup := tokenFor(t, "sup", entity.RoleSupervisor, entity.DepartmentFermentation)

	resp, rec := f.call(t, http.MethodPost, "/api/fermentation", opA, fermentationBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := rec["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, entity.StatusPending, rec["status"])
	assert.Equal(t, false, rec["approved"])

	resp, body := f.call(t, http.MethodPut, "/api/fermentation/"+id, opB, fermentationBody())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not_your_record", body["reason"])

	resp, _ = f.call(t, http.MethodGet, "/api/fermentation/"+id, opB, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "un operador no ve registros ajenos")

	resp, body = f.call(t, http.MethodPatch, "/api/fermentation/"+id+"/approve", opA, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "insufficient_role", body["reason"])

	resp, body = f.call(t, http.MethodPatch, "/api/fermentation/"+id+"/approve", sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.StatusApproved, body["status"])
	assert.Equal(t, true, body["approved"])
	assert.Equal(t, "sup", body["approved_by"])

	resp, body = f.call(t, http.MethodPatch, "/api/fermentation/"+id+"/approve", sup, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "aprobar dos veces no es un error")
	assert.Equal(t, entity.StatusApproved, body["status"])

	resp, body = f.call(t, http.MethodDelete, "/api/fermentation/"+id, opA, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "already_approved", body["reason"])

	resp, body = f.call(t, http.MethodGet, "/api/fermentation/summary", sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["approved"])
	assert.EqualValues(t, 0, body["pending"])

	resp, body = f.call(t, http.MethodGet, "/api/fermentation?status=approved", opA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items, _ := body["items"].([]any)
	assert.Len(t, items, 1)

	resp, _ = f.call(t, http.MethodDelete, "/api/fermentation/"+id, sup, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_ValidacionDeRegistro(t *testing.T) {
	f := newAPI(t)
	seedEmployee(t, f.employees, "op-a", entity.RoleOperator, entity.DepartmentPackaging)
	opA := tokenFor(t, "op-a", entity.RoleOperator, entity.DepartmentPackaging)

	resp, body := f.call(t, http.MethodPost, "/api/packaging", opA, map[string]any{
		"date": "2026-03-10", "plant": "P", "product": "Cacao", "campaign": "C",
		"measurements": map[string]any{"units": "-5"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", body["code"])
	assert.Equal(t, "units", body["field"])
}

func TestAPI_CambioDeRolInvalidaSesion(t *testing.T) {
	f := newAPI(t)
	seedEmployee(t, f.employees, "rh", entity.RoleHR, entity.DepartmentOffice)
	seedEmployee(t, f.employees, "op", entity.RoleOperator, entity.DepartmentFermentation)
	hr := tokenFor(t, "rh", entity.RoleHR, entity.DepartmentOffice)
	op := tokenFor(t, "op", entity.RoleOperator, entity.DepartmentFermentation)

	resp, _ := f.call(t, http.MethodPut, "/api/employees/op", op, map[string]any{"role": entity.RoleSupervisor})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "un operador no gestiona empleados")

	resp, body := f.call(t, http.MethodPut, "/api/employees/op", hr, map[string]any{"role": entity.RoleSupervisor})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.RoleSupervisor, body["role"])
	assert.True(t, f.sched.Pending("op"), "el cierre forzado queda programado")

	resp, body = f.call(t, http.MethodGet, "/api/fermentation", op, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "STALE_SESSION", body["code"])
	assert.Equal(t, true, body["force_logout"])

	resp, _ = f.call(t, http.MethodGet, "/api/employees/op/role-changes", hr, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_EventosRequierenSesion(t *testing.T) {
	f := newAPI(t)
	resp, body := f.call(t, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_TOKEN", body["code"])
}
