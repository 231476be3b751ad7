package policy_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/policy"
)

var (
	opA   = policy.Actor{ID: "op-a", Role: entity.RoleOperator}
	opB   = policy.Actor{ID: "op-b", Role: entity.RoleOperator}
	sup   = policy.Actor{ID: "sup-1", Role: entity.RoleSupervisor}
	hr    = policy.Actor{ID: "hr-1", Role: entity.RoleHR}
	admin = policy.Actor{ID: "admin-1", Role: entity.RoleAdmin}
)

func owner(a policy.Actor) *policy.Owner {
	return &policy.Owner{ID: a.ID, Role: a.Role, Found: true}
}

func subject(status string, creator *policy.Owner) policy.Subject {
	return policy.Subject{Exists: true, Status: status, Creator: creator}
}

func TestEvaluate_EditDelete(t *testing.T) {
	cases := []struct {
		name   string
		actor  policy.Actor
		subj   policy.Subject
		allow  bool
		code   int
		reason string
	}{
		{"operador edita propio pendiente", opA, subject(entity.StatusPending, owner(opA)), true, 200, ""},
		{"operador edita ajeno pendiente", opB, subject(entity.StatusPending, owner(opA)), false, 403, domain.ReasonNotYourRecord},
		{"operador edita propio aprobado", opA, subject(entity.StatusApproved, owner(opA)), false, 403, domain.ReasonAlreadyApproved},
		{"operador edita ajeno aprobado", opB, subject(entity.StatusApproved, owner(opA)), false, 403, domain.ReasonNotYourRecord},
		{"operador edita legado sin creador", opA, subject(entity.StatusPending, nil), false, 403, domain.ReasonNotYourRecord},
		{"supervisor edita de operador pendiente", sup, subject(entity.StatusPending, owner(opA)), true, 200, ""},
		{"supervisor edita de operador aprobado", sup, subject(entity.StatusApproved, owner(opA)), true, 200, ""},
		{"supervisor edita propio", sup, subject(entity.StatusApproved, owner(sup)), true, 200, ""},
		{"supervisor edita de hr", sup, subject(entity.StatusPending, owner(hr)), false, 403, domain.ReasonNotYourRecord},
		{"admin edita de supervisor", admin, subject(entity.StatusPending, owner(sup)), false, 403, domain.ReasonNotYourRecord},
		{"admin edita sin creador", admin, subject(entity.StatusPending, nil), false, 403, domain.ReasonNoCreator},
		{"hr edita creador inexistente", hr, subject(entity.StatusPending, &policy.Owner{ID: "ghost"}), false, 403, domain.ReasonCreatorNotFound},
		{"referencia de creador vacía", hr, subject(entity.StatusPending, &policy.Owner{}), false, 400, ""},
		{"registro inexistente", sup, policy.Subject{}, false, 404, ""},
	}
	for _, tc := range cases {
		for _, action := range []policy.Action{policy.ActionEdit, policy.ActionDelete} {
			t.Run(tc.name+"/"+string(action), func(t *testing.T) {
				d := policy.Evaluate(tc.actor, tc.subj, action)
				assert.Equal(t, tc.allow, d.Allowed)
				assert.Equal(t, tc.code, d.StatusCode)
				assert.Equal(t, tc.reason, d.Reason)
				if !tc.allow {
					assert.NotEmpty(t, d.Message, "toda negativa lleva mensaje accionable")
				}
			})
		}
	}
}

// Ningún operador modifica un registro aprobado, sea quien sea el creador.
func TestEvaluate_OperadorNuncaModificaAprobado(t *testing.T) {
	creators := []*policy.Owner{nil, owner(opA), owner(opB), owner(sup), {ID: "ghost"}}
	for _, c := range creators {
		for _, action := range []policy.Action{policy.ActionEdit, policy.ActionDelete} {
			d := policy.Evaluate(opA, subject(entity.StatusApproved, c), action)
			assert.False(t, d.Allowed)
		}
	}
}

func TestEvaluate_Create(t *testing.T) {
	for _, a := range []policy.Actor{opA, sup, hr, admin} {
		assert.True(t, policy.Evaluate(a, policy.Subject{}, policy.ActionCreate).Allowed)
	}
	d := policy.Evaluate(policy.Actor{}, policy.Subject{}, policy.ActionCreate)
	assert.Equal(t, http.StatusUnauthorized, d.StatusCode)
}

func TestEvaluate_Approve(t *testing.T) {
	d := policy.Evaluate(opA, subject(entity.StatusPending, owner(opA)), policy.ActionApprove)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonInsufficientRole, d.Reason)

	for _, a := range []policy.Actor{sup, hr, admin} {
		d = policy.Evaluate(a, subject(entity.StatusPending, owner(opA)), policy.ActionApprove)
		assert.True(t, d.Allowed)
		assert.False(t, d.NoOp)

		// Regla uniforme: cualquier pendiente, incluso legado o de otro privilegiado.
		assert.True(t, policy.Evaluate(a, subject(entity.StatusPending, nil), policy.ActionApprove).Allowed)
		assert.True(t, policy.Evaluate(a, subject(entity.StatusPending, owner(hr)), policy.ActionApprove).Allowed)
	}

	d = policy.Evaluate(sup, subject(entity.StatusApproved, owner(opA)), policy.ActionApprove)
	assert.True(t, d.Allowed)
	assert.True(t, d.NoOp, "re-aprobar es idempotente")
}

func TestVisible(t *testing.T) {
	assert.True(t, policy.Visible(opA, "op-a", false))
	assert.False(t, policy.Visible(opA, "op-b", true))
	assert.True(t, policy.Visible(opA, "", true))
	assert.False(t, policy.Visible(opA, "", false))
	assert.True(t, policy.Visible(sup, "op-b", false))
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, policy.Evaluate(opA, subject(entity.StatusPending, owner(opA)), policy.ActionEdit).Err())

	err := policy.Evaluate(opB, subject(entity.StatusPending, owner(opA)), policy.ActionEdit).Err()
	assert.ErrorIs(t, err, domain.ErrForbidden)
	var perr *domain.PermissionError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, domain.ReasonNotYourRecord, perr.Reason)

	assert.ErrorIs(t, policy.Evaluate(sup, policy.Subject{}, policy.ActionDelete).Err(), domain.ErrNotFound)
	assert.ErrorIs(t, policy.Evaluate(sup, subject(entity.StatusPending, &policy.Owner{}), policy.ActionDelete).Err(), domain.ErrInvalidInput)
}
