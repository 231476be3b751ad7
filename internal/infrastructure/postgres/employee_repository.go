package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/produccion-api/internal/domain"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
)

var _ repository.EmployeeRepository = (*EmployeeRepo)(nil)

const employeeColumns = `id, name, email, password_hash, role, department, title, supervisor_id, is_active, created_at, updated_at`

// EmployeeRepo implementación del puerto EmployeeRepository sobre PostgreSQL.
type EmployeeRepo struct {
	q Querier
}

// NewEmployeeRepository construye el adaptador de persistencia para empleados. Pasar pool o tx.
func NewEmployeeRepository(q Querier) *EmployeeRepo {
	return &EmployeeRepo{q: q}
}

func scanEmployee(row pgx.Row) (*entity.Employee, error) {
	var e entity.Employee
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.PasswordHash, &e.Role, &e.Department,
		&e.Title, &e.SupervisorID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create persiste un nuevo empleado.
func (r *EmployeeRepo) Create(ctx context.Context, e *entity.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.Name, e.Email, e.PasswordHash, e.Role, e.Department, e.Title,
		e.SupervisorID, e.IsActive, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailAlreadyExists
		}
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (r *EmployeeRepo) getOne(ctx context.Context, where string, arg any) (*entity.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE ` + where
	e, err := scanEmployee(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

// GetByID obtiene un empleado por ID.
func (r *EmployeeRepo) GetByID(ctx context.Context, id string) (*entity.Employee, error) {
	if !validID(id) {
		return nil, nil
	}
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail obtiene un empleado por email (ya normalizado por el caso de uso).
func (r *EmployeeRepo) GetByEmail(ctx context.Context, email string) (*entity.Employee, error) {
	return r.getOne(ctx, "email = $1", email)
}

// GetMany resuelve varios empleados en una sola consulta; los ids inexistentes no aparecen en el mapa.
func (r *EmployeeRepo) GetMany(ctx context.Context, ids []string) (map[string]*entity.Employee, error) {
	out := make(map[string]*entity.Employee, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	ids = valid
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get employees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

// Update actualiza un empleado.
func (r *EmployeeRepo) Update(ctx context.Context, e *entity.Employee) error {
	if !validID(e.ID) {
		return domain.ErrUserNotFound
	}
	query := `
		UPDATE employees SET name = $2, email = $3, password_hash = $4, role = $5, department = $6,
			title = $7, supervisor_id = $8, is_active = $9, updated_at = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		e.ID, e.Name, e.Email, e.PasswordHash, e.Role, e.Department, e.Title,
		e.SupervisorID, e.IsActive, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailAlreadyExists
		}
		return fmt.Errorf("update employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List lista empleados con filtros y paginación, ordenados por nombre.
func (r *EmployeeRepo) List(ctx context.Context, f repository.EmployeeFilter, limit, offset int) ([]*entity.Employee, error) {
	var (
		conds []string
		args  []any
	)
	if !f.IncludeInactive {
		conds = append(conds, "is_active")
	}
	if f.Department != "" {
		args = append(args, f.Department)
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY name, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()
	var list []*entity.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Delete elimina un empleado por ID (borrado físico).
func (r *EmployeeRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return nil
}
