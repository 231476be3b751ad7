// Package policy decide quién puede crear, editar, borrar o aprobar un registro de producción.
// Es lógica pura: el rol del creador lo resuelve quien llama y llega en Subject.Creator.
package policy

import (
	"net/http"

	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
)

// Action acción sobre un registro.
type Action string

const (
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
)

// Actor empleado autenticado que ejecuta la acción (datos vigentes, no los del token).
type Actor struct {
	ID   string
	Role string
}

// Owner creador resuelto de un registro. Found=false indica referencia colgante.
type Owner struct {
	ID    string
	Role  string
	Name  string
	Found bool
}

// Subject estado del registro relevante para la decisión. Creator nil = registro sin creador.
type Subject struct {
	Exists  bool
	Status  string
	Creator *Owner
}

// Decision resultado de Evaluate. NoOp marca la re-aprobación idempotente.
type Decision struct {
	Allowed    bool
	NoOp       bool
	StatusCode int
	Reason     string
	Message    string
}

// IsPrivileged supervisor, hr y admin.
func IsPrivileged(role string) bool {
	switch role {
	case entity.RoleSupervisor, entity.RoleHR, entity.RoleAdmin:
		return true
	}
	return false
}

// Visible filtro de lectura: los privilegiados ven todo; un operador ve lo suyo y, si la etapa lo
// admite, los registros legados sin creador.
func Visible(actor Actor, creatorID string, legacyVisible bool) bool {
	if IsPrivileged(actor.Role) {
		return true
	}
	if creatorID == "" {
		return legacyVisible
	}
	return creatorID == actor.ID
}

// Evaluate aplica las reglas en orden: autenticación, existencia, y luego la regla de la acción.
func Evaluate(actor Actor, subj Subject, action Action) Decision {
	if actor.ID == "" || !entity.ValidRole(actor.Role) {
		return deny(http.StatusUnauthorized, "", "sesión requerida")
	}
	if action == ActionCreate {
		return allow()
	}
	if !subj.Exists {
		return deny(http.StatusNotFound, "", "registro no encontrado")
	}
	if subj.Creator != nil && subj.Creator.ID == "" {
		return deny(http.StatusBadRequest, "", "referencia de creador inválida")
	}

	switch action {
	case ActionEdit, ActionDelete:
		return evaluateModify(actor, subj)
	case ActionApprove:
		return evaluateApprove(actor, subj)
	}
	return deny(http.StatusBadRequest, "", "acción desconocida")
}

func evaluateModify(actor Actor, subj Subject) Decision {
	if actor.Role == entity.RoleOperator {
		if subj.Creator == nil || subj.Creator.ID != actor.ID {
			return deny(http.StatusForbidden, domain.ReasonNotYourRecord,
				"solo puedes modificar tus propios registros")
		}
		if subj.Status != entity.StatusPending {
			return deny(http.StatusForbidden, domain.ReasonAlreadyApproved,
				"el registro ya fue aprobado; solo puedes modificar tus registros mientras estén pendientes")
		}
		return allow()
	}

	if subj.Creator == nil {
		return deny(http.StatusForbidden, domain.ReasonNoCreator, "el registro no tiene creador asignado")
	}
	if subj.Creator.ID == actor.ID {
		return allow()
	}
	if !subj.Creator.Found {
		return deny(http.StatusForbidden, domain.ReasonCreatorNotFound, "no se encontró al creador del registro")
	}
	if subj.Creator.Role == entity.RoleOperator {
		return allow()
	}
	return deny(http.StatusForbidden, domain.ReasonNotYourRecord,
		"solo puedes modificar registros propios o creados por operadores")
}

func evaluateApprove(actor Actor, subj Subject) Decision {
	if !IsPrivileged(actor.Role) {
		return deny(http.StatusForbidden, domain.ReasonInsufficientRole,
			"solo supervisores, RRHH o administradores pueden aprobar registros")
	}
	if subj.Status == entity.StatusApproved {
		d := allow()
		d.NoOp = true
		return d
	}
	return allow()
}

func allow() Decision {
	return Decision{Allowed: true, StatusCode: http.StatusOK}
}

func deny(code int, reason, msg string) Decision {
	return Decision{StatusCode: code, Reason: reason, Message: msg}
}

// Err convierte una decisión negativa en el error de dominio correspondiente; nil si está permitida.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusBadRequest:
		return &domain.ValidationError{Message: d.Message}
	default:
		return domain.NewPermissionError(d.Reason, d.Message)
	}
}
