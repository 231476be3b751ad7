// Package rolechange registra cambios de rol o departamento y garantiza que el empleado afectado
// vuelva a autenticarse: aviso inmediato, cierre forzado tras el periodo de gracia y un barrido
// periódico como red de seguridad cuando el temporizador se pierde.
package rolechange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
	"github.com/jhoicas/produccion-api/internal/ids"
	"github.com/jhoicas/produccion-api/pkg/logger"
	"github.com/jhoicas/produccion-api/pkg/metrics"
)

// Eventos enviados al empleado afectado.
const (
	EventRoleChanged        = "role-changed"
	EventForceLogoutWarning = "force-logout-warning"
	EventForceLogout        = "force-logout"
)

// Config tiempos del ciclo de cierre forzado.
type Config struct {
	Grace         time.Duration // 24h
	Countdown     time.Duration // 10s entre aviso y cierre
	Retention     time.Duration // 30 días
	SweepSchedule string        // cron, @hourly
	PurgeSchedule string        // cron, @daily
}

// Tracker coordina repositorio, planificador y notificaciones.
type Tracker struct {
	repo    repository.RoleChangeRepository
	sched   Scheduler
	notify  Notifier
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	cron    *cron.Cron

	mu         sync.Mutex
	countdowns map[string]*time.Timer
}

// NewTracker construye el tracker. log y m pueden ser nil.
func NewTracker(repo repository.RoleChangeRepository, sched Scheduler, notify Notifier, cfg Config, log *logger.Logger, m *metrics.Metrics) *Tracker {
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@hourly"
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = "@daily"
	}
	return &Tracker{
		repo:       repo,
		sched:      sched,
		notify:     notify,
		cfg:        cfg,
		log:        logger.OrNop(log).Component("rolechange"),
		metrics:    m,
		now:        time.Now,
		countdowns: make(map[string]*time.Timer),
	}
}

// WithClock reemplaza el reloj (tests).
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Start conecta el planificador y arranca el barrido y la purga periódicos.
func (t *Tracker) Start() error {
	t.sched.Start(t.fire)

	c := cron.New()
	if _, err := c.AddFunc(t.cfg.SweepSchedule, t.runSweep); err != nil {
		return fmt.Errorf("programar barrido: %w", err)
	}
	if _, err := c.AddFunc(t.cfg.PurgeSchedule, t.runPurge); err != nil {
		return fmt.Errorf("programar purga: %w", err)
	}
	c.Start()
	t.cron = c
	t.log.Info().Str("sweep", t.cfg.SweepSchedule).Str("purge", t.cfg.PurgeSchedule).Msg("tracker iniciado")
	return nil
}

// Stop detiene cron, planificador y cuentas regresivas en curso.
func (t *Tracker) Stop() {
	if t.cron != nil {
		<-t.cron.Stop().Done()
	}
	t.sched.Stop()
	t.mu.Lock()
	for id, timer := range t.countdowns {
		timer.Stop()
		delete(t.countdowns, id)
	}
	t.mu.Unlock()
}

// ApplyRoleChange registra el cambio, programa el cierre forzado a now+Grace (reemplazando el
// anterior del empleado, cuyos cambios pendientes quedan cubiertos por este) y avisa al empleado. Sin cambio real devuelve (nil, nil).
func (t *Tracker) ApplyRoleChange(ctx context.Context, employeeID, oldRole, newRole string, oldDept, newDept *string) (*entity.RoleChange, error) {
	if oldRole == newRole && equalPtr(oldDept, newDept) {
		return nil, nil
	}
	now := t.now()
	rc := &entity.RoleChange{
		ID:            ids.New(),
		EmployeeID:    employeeID,
		OldRole:       oldRole,
		NewRole:       newRole,
		OldDepartment: oldDept,
		NewDepartment: newDept,
		ChangedAt:     now,
	}
	if err := t.repo.Create(ctx, rc); err != nil {
		return nil, err
	}
	// Un solo cierre forzado por empleado: el barrido no debe recoger los cambios anteriores.
	if _, err := t.repo.SupersedePending(ctx, employeeID, rc.ID); err != nil {
		return nil, err
	}
	t.metrics.ObserveRoleChange()

	deadline := now.Add(t.cfg.Grace)
	if err := t.sched.Schedule(ctx, Job{EmployeeID: employeeID, RoleChangeID: rc.ID}, deadline); err != nil {
		// El barrido periódico cubre el cierre aunque no haya temporizador.
		t.log.Error().Err(err).Str("employee_id", employeeID).Msg("no se pudo programar el cierre de sesión")
	}

	t.notify.Notify(employeeID, EventRoleChanged, map[string]any{
		"role_change_id":  rc.ID,
		"old_role":        oldRole,
		"new_role":        newRole,
		"old_department":  oldDept,
		"new_department":  newDept,
		"logout_deadline": deadline.UTC(),
		"message":         "Tu rol o departamento cambió. Cierra sesión y vuelve a entrar para aplicar los nuevos permisos.",
	})
	t.log.Info().Str("employee_id", employeeID).Str("old_role", oldRole).Str("new_role", newRole).
		Time("deadline", deadline).Msg("cambio de rol registrado")
	return rc, nil
}

// MarkLoggedOut resuelve todos los cambios pendientes del empleado y cancela su cierre programado.
func (t *Tracker) MarkLoggedOut(ctx context.Context, employeeID string) error {
	n, err := t.repo.ResolveAll(ctx, employeeID)
	if err != nil {
		return err
	}
	if err := t.sched.Cancel(ctx, employeeID); err != nil {
		t.log.Warn().Err(err).Str("employee_id", employeeID).Msg("no se pudo cancelar el cierre programado")
	}
	t.stopCountdown(employeeID)
	if n > 0 {
		t.log.Info().Str("employee_id", employeeID).Int("resolved", n).Msg("cambios de rol resueltos")
	}
	return nil
}

// History cambios de rol del empleado, más recientes primero.
func (t *Tracker) History(ctx context.Context, employeeID string) ([]*entity.RoleChange, error) {
	return t.repo.ListByEmployee(ctx, employeeID)
}

// Sweep fuerza el cierre de los cambios vencidos que no se resolvieron ni reclamaron.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	overdue, err := t.repo.ListOverdue(ctx, t.now().Add(-t.cfg.Grace))
	if err != nil {
		return 0, err
	}
	forced := 0
	for _, rc := range overdue {
		ok, err := t.forceLogout(ctx, rc, "sweep")
		if err != nil {
			return forced, err
		}
		if ok {
			forced++
		}
	}
	return forced, nil
}

// Purge borra cambios más antiguos que la retención, estén o no resueltos.
func (t *Tracker) Purge(ctx context.Context) (int, error) {
	return t.repo.DeleteOlderThan(ctx, t.now().Add(-t.cfg.Retention))
}

func (t *Tracker) fire(ctx context.Context, job Job) {
	rc, err := t.repo.GetByID(ctx, job.RoleChangeID)
	if err != nil {
		t.log.Error().Err(err).Str("role_change_id", job.RoleChangeID).Msg("leer cambio de rol")
		return
	}
	if rc == nil || rc.Resolved() {
		return
	}
	if _, err := t.forceLogout(ctx, rc, "timer"); err != nil {
		t.log.Error().Err(err).Str("role_change_id", rc.ID).Msg("cierre forzado")
	}
}

// forceLogout reclama el cambio y, si gana el reclamo, envía el aviso con cuenta regresiva y
// luego la orden de cierre. Temporizador y barrido pasan por aquí; el reclamo evita el doble aviso.
func (t *Tracker) forceLogout(ctx context.Context, rc *entity.RoleChange, trigger string) (bool, error) {
	won, err := t.repo.ClaimAutoLogout(ctx, rc.ID)
	if err != nil || !won {
		return false, err
	}
	t.metrics.ObserveForcedLogout(trigger)
	t.log.Info().Str("employee_id", rc.EmployeeID).Str("trigger", trigger).Msg("cierre de sesión forzado")

	seconds := int(t.cfg.Countdown / time.Second)
	t.notify.Notify(rc.EmployeeID, EventForceLogoutWarning, map[string]any{
		"role_change_id": rc.ID,
		"countdown":      seconds,
		"message":        fmt.Sprintf("Tu sesión se cerrará en %d segundos por un cambio de rol o departamento.", seconds),
	})

	final := map[string]any{
		"role_change_id": rc.ID,
		"reason":         "role_changed",
		"message":        "Sesión finalizada. Inicia sesión nuevamente.",
	}
	if t.cfg.Countdown <= 0 {
		t.notify.Notify(rc.EmployeeID, EventForceLogout, final)
		return true, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.countdowns[rc.EmployeeID]; ok {
		prev.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(t.cfg.Countdown, func() {
		t.mu.Lock()
		if t.countdowns[rc.EmployeeID] == timer {
			delete(t.countdowns, rc.EmployeeID)
		}
		t.mu.Unlock()
		t.notify.Notify(rc.EmployeeID, EventForceLogout, final)
	})
	t.countdowns[rc.EmployeeID] = timer
	return true, nil
}

func (t *Tracker) stopCountdown(employeeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.countdowns[employeeID]; ok {
		timer.Stop()
		delete(t.countdowns, employeeID)
	}
}

func (t *Tracker) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := t.Sweep(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("barrido de cambios de rol")
		return
	}
	t.log.Info().Int("forced", n).Msg("barrido de cambios de rol completado")
}

func (t *Tracker) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := t.Purge(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("purga de cambios de rol")
		return
	}
	t.log.Info().Int("deleted", n).Msg("purga de cambios de rol completada")
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
