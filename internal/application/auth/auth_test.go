package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/produccion-api/internal/application/auth"
	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/infrastructure/memory"
	pkgjwt "github.com/jhoicas/produccion-api/pkg/jwt"
)

const secret = "test-secret"

type fakeTracker struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTracker) MarkLoggedOut(_ context.Context, employeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, employeeID)
	return nil
}

func setup(t *testing.T) (*auth.AuthUseCase, *auth.SessionValidator, *memory.EmployeeRepo, *fakeTracker) {
	t.Helper()
	repo := memory.NewEmployeeRepository()
	tracker := &fakeTracker{}
	uc := auth.NewAuthUseCase(repo, tracker, auth.JWTConfig{Secret: secret, TTL: time.Hour, Issuer: "test"}, nil)
	return uc, auth.NewSessionValidator(repo, secret), repo, tracker
}

func register(t *testing.T, uc *auth.AuthUseCase, email string) *dto.EmployeeResponse {
	t.Helper()
	e, err := uc.Register(context.Background(), dto.RegisterRequest{
		Name: "Ana", Email: email, Password: "password123", Department: entity.DepartmentFermentation,
	})
	require.NoError(t, err)
	return e
}

func TestRegister_SiempreOperador(t *testing.T) {
	uc, _, _, _ := setup(t)
	e := register(t, uc, "  Ana@Planta.COM ")
	assert.Equal(t, entity.RoleOperator, e.Role)
	assert.Equal(t, "ana@planta.com", e.Email)
	assert.True(t, e.IsActive)
}

func TestRegister_EmailDuplicadoSinMayusculas(t *testing.T) {
	uc, _, _, _ := setup(t)
	register(t, uc, "ana@planta.com")
	_, err := uc.Register(context.Background(), dto.RegisterRequest{
		Name: "Otra", Email: "ANA@planta.com", Password: "password123", Department: entity.DepartmentPackaging,
	})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestRegister_Validaciones(t *testing.T) {
	uc, _, _, _ := setup(t)
	cases := []struct {
		name  string
		req   dto.RegisterRequest
		field string
	}{
		{"sin nombre", dto.RegisterRequest{Email: "a@b.c", Password: "password123", Department: "office"}, "name"},
		{"email inválido", dto.RegisterRequest{Name: "A", Email: "sin-arroba", Password: "password123", Department: "office"}, "email"},
		{"password corto", dto.RegisterRequest{Name: "A", Email: "a@b.c", Password: "corta", Department: "office"}, "password"},
		{"departamento desconocido", dto.RegisterRequest{Name: "A", Email: "a@b.c", Password: "password123", Department: "ventas"}, "department"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Register(context.Background(), tc.req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLogin_ResuelveCambiosYEmiteToken(t *testing.T) {
	uc, validator, _, tracker := setup(t)
	e := register(t, uc, "ana@planta.com")

	res, err := uc.Login(context.Background(), dto.LoginRequest{Email: "ANA@planta.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, e.ID, res.Employee.ID)
	assert.Equal(t, []string{e.ID}, tracker.calls)

	claims, err := pkgjwt.Parse(secret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleOperator, claims.Role)
	assert.Equal(t, entity.DepartmentFermentation, claims.Department)

	sess, err := validator.Validate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, e.ID, sess.EmployeeID)
	assert.Equal(t, "Ana", sess.Name)
}

func TestLogin_CredencialesInvalidas(t *testing.T) {
	uc, _, _, tracker := setup(t)
	register(t, uc, "ana@planta.com")

	_, err := uc.Login(context.Background(), dto.LoginRequest{Email: "ana@planta.com", Password: "incorrecta"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = uc.Login(context.Background(), dto.LoginRequest{Email: "nadie@planta.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, tracker.calls)
}

func TestLogin_CuentaInactiva(t *testing.T) {
	uc, _, repo, _ := setup(t)
	e := register(t, uc, "ana@planta.com")
	stored, err := repo.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	stored.IsActive = false
	require.NoError(t, repo.Update(context.Background(), stored))

	_, err = uc.Login(context.Background(), dto.LoginRequest{Email: "ana@planta.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestValidate_RolModificadoAntesDeExpirar(t *testing.T) {
	uc, validator, repo, _ := setup(t)
	e := register(t, uc, "ana@planta.com")
	res, err := uc.Login(context.Background(), dto.LoginRequest{Email: "ana@planta.com", Password: "password123"})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	stored.Role = entity.RoleSupervisor
	require.NoError(t, repo.Update(context.Background(), stored))

	_, err = validator.Validate(context.Background(), res.Token)
	assert.ErrorIs(t, err, domain.ErrStaleSession)
}

func TestValidate_DepartamentoModificado(t *testing.T) {
	uc, validator, repo, _ := setup(t)
	e := register(t, uc, "ana@planta.com")
	res, err := uc.Login(context.Background(), dto.LoginRequest{Email: "ana@planta.com", Password: "password123"})
	require.NoError(t, err)

	stored, _ := repo.GetByID(context.Background(), e.ID)
	stored.Department = entity.DepartmentPackaging
	require.NoError(t, repo.Update(context.Background(), stored))

	_, err = validator.Validate(context.Background(), res.Token)
	assert.ErrorIs(t, err, domain.ErrStaleSession)
}

func TestValidate_Fallos(t *testing.T) {
	_, validator, repo, _ := setup(t)
	ctx := context.Background()

	_, err := validator.Validate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = validator.Validate(ctx, "basura")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	expired, err := pkgjwt.Generate(secret, "test", "emp-x", "operator", "packaging", -time.Minute)
	require.NoError(t, err)
	_, err = validator.Validate(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)

	orphan, err := pkgjwt.Generate(secret, "test", "emp-x", "operator", "packaging", time.Hour)
	require.NoError(t, err)
	_, err = validator.Validate(ctx, orphan)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	now := time.Now()
	require.NoError(t, repo.Create(ctx, &entity.Employee{
		ID: "emp-off", Email: "off@planta.com", Role: "operator", Department: "packaging",
		IsActive: false, CreatedAt: now, UpdatedAt: now,
	}))
	inactive, err := pkgjwt.Generate(secret, "test", "emp-off", "operator", "packaging", time.Hour)
	require.NoError(t, err)
	_, err = validator.Validate(ctx, inactive)
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestLogout_Me(t *testing.T) {
	uc, _, _, tracker := setup(t)
	e := register(t, uc, "ana@planta.com")

	require.NoError(t, uc.Logout(context.Background(), e.ID))
	assert.Equal(t, []string{e.ID}, tracker.calls)

	me, err := uc.Me(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@planta.com", me.Email)

	_, err = uc.Me(context.Background(), "desconocido")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
