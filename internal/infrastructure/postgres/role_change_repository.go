package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
)

var _ repository.RoleChangeRepository = (*RoleChangeRepo)(nil)

const roleChangeColumns = `id, employee_id, old_role, new_role, old_department, new_department, changed_at,
	has_logged_out_since, auto_logout_scheduled`

// RoleChangeRepo cambios de rol sobre PostgreSQL.
type RoleChangeRepo struct {
	q Querier
}

// NewRoleChangeRepository construye el adaptador. Pasar pool o tx.
func NewRoleChangeRepository(q Querier) *RoleChangeRepo {
	return &RoleChangeRepo{q: q}
}

func scanRoleChange(row pgx.Row) (*entity.RoleChange, error) {
	var rc entity.RoleChange
	err := row.Scan(&rc.ID, &rc.EmployeeID, &rc.OldRole, &rc.NewRole, &rc.OldDepartment,
		&rc.NewDepartment, &rc.ChangedAt, &rc.HasLoggedOutSince, &rc.AutoLogoutScheduled)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *RoleChangeRepo) Create(ctx context.Context, rc *entity.RoleChange) error {
	query := `INSERT INTO role_changes (` + roleChangeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query, rc.ID, rc.EmployeeID, rc.OldRole, rc.NewRole, rc.OldDepartment,
		rc.NewDepartment, rc.ChangedAt, rc.HasLoggedOutSince, rc.AutoLogoutScheduled)
	if err != nil {
		return fmt.Errorf("insert role change: %w", err)
	}
	return nil
}

func (r *RoleChangeRepo) GetByID(ctx context.Context, id string) (*entity.RoleChange, error) {
	rc, err := scanRoleChange(r.q.QueryRow(ctx, `SELECT `+roleChangeColumns+` FROM role_changes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get role change: %w", err)
	}
	return rc, nil
}

func (r *RoleChangeRepo) list(ctx context.Context, query string, args ...any) ([]*entity.RoleChange, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list role changes: %w", err)
	}
	defer rows.Close()
	var list []*entity.RoleChange
	for rows.Next() {
		rc, err := scanRoleChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role change: %w", err)
		}
		list = append(list, rc)
	}
	return list, rows.Err()
}

func (r *RoleChangeRepo) ListByEmployee(ctx context.Context, employeeID string) ([]*entity.RoleChange, error) {
	if !validID(employeeID) {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+roleChangeColumns+` FROM role_changes WHERE employee_id = $1 ORDER BY changed_at DESC`, employeeID)
}

func (r *RoleChangeRepo) ResolveAll(ctx context.Context, employeeID string) (int, error) {
	if !validID(employeeID) {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE role_changes SET has_logged_out_since = TRUE WHERE employee_id = $1 AND NOT has_logged_out_since`,
		employeeID)
	if err != nil {
		return 0, fmt.Errorf("resolve role changes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *RoleChangeRepo) ClaimAutoLogout(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE role_changes SET auto_logout_scheduled = TRUE
		WHERE id = $1 AND NOT has_logged_out_since AND NOT auto_logout_scheduled`, id)
	if err != nil {
		return false, fmt.Errorf("claim auto logout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RoleChangeRepo) SupersedePending(ctx context.Context, employeeID, keepID string) (int, error) {
	if !validID(employeeID) {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE role_changes SET auto_logout_scheduled = TRUE
		WHERE employee_id = $1 AND id <> $2 AND NOT has_logged_out_since AND NOT auto_logout_scheduled`,
		employeeID, keepID)
	if err != nil {
		return 0, fmt.Errorf("supersede role changes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *RoleChangeRepo) ListOverdue(ctx context.Context, before time.Time) ([]*entity.RoleChange, error) {
	return r.list(ctx, `
		SELECT `+roleChangeColumns+` FROM role_changes
		WHERE NOT has_logged_out_since AND NOT auto_logout_scheduled AND changed_at < $1
		ORDER BY changed_at`, before)
}

func (r *RoleChangeRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM role_changes WHERE changed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge role changes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
