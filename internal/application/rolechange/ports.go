package rolechange

import (
	"context"
	"time"
)

// Notifier canal de notificaciones en vivo (fire-and-forget).
type Notifier interface {
	Notify(employeeID, event string, payload any)
}

// Job acción diferida de cierre de sesión para un cambio de rol concreto.
type Job struct {
	EmployeeID   string
	RoleChangeID string
}

// Handler se invoca cuando vence un Job.
type Handler func(ctx context.Context, job Job)

// Scheduler planificador de acciones diferidas con clave única por empleado: programar un Job
// cancela cualquier otro pendiente del mismo empleado.
type Scheduler interface {
	Start(h Handler)
	Schedule(ctx context.Context, job Job, at time.Time) error
	Cancel(ctx context.Context, employeeID string) error
	Stop()
}
