package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
)

var _ repository.RecordRepository = (*RecordRepo)(nil)

// Beginner Querier que además abre transacciones (*pgxpool.Pool).
type Beginner interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// canonicalStatusSQL estado canónico: status manda; approved legado solo si status es nulo.
const canonicalStatusSQL = `COALESCE(status, CASE WHEN approved THEN 'approved' ELSE 'pending' END)`

const recordColumns = `id, kind, date, plant, product, campaign, stage, tank, level_indicator, notes,
	status, approved, created_by, approved_by, approved_at, created_at, updated_at`

// RecordRepo registros de producción sobre PostgreSQL. Las mediciones viven en
// record_measurements (NUMERIC) y se escriben en la misma transacción que la fila principal.
type RecordRepo struct {
	db Beginner
}

// NewRecordRepository construye el adaptador de persistencia para registros de producción.
func NewRecordRepository(db Beginner) *RecordRepo {
	return &RecordRepo{db: db}
}

func scanRecord(row pgx.Row) (*entity.ProductionRecord, error) {
	var (
		rec    entity.ProductionRecord
		kind   string
		status *string
	)
	err := row.Scan(&rec.ID, &kind, &rec.Date, &rec.Plant, &rec.Product, &rec.Campaign, &rec.Stage,
		&rec.Tank, &rec.LevelIndicator, &rec.Notes, &status, &rec.Approved, &rec.CreatedBy,
		&rec.ApprovedBy, &rec.ApprovedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = entity.RecordKind(kind)
	if status != nil {
		rec.Status = *status
	}
	rec.Measurements = map[string]decimal.Decimal{}
	return &rec, nil
}

// Create inserta el registro y sus mediciones en una transacción.
func (r *RecordRepo) Create(ctx context.Context, rec *entity.ProductionRecord) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO production_records (` + recordColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
		_, err := tx.Exec(ctx, query,
			rec.ID, string(rec.Kind), rec.Date, rec.Plant, rec.Product, rec.Campaign, rec.Stage,
			rec.Tank, rec.LevelIndicator, rec.Notes, nullable(rec.Status), rec.Approved, rec.CreatedBy,
			rec.ApprovedBy, rec.ApprovedAt, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert production record: %w", err)
		}
		return writeMeasurements(ctx, tx, rec.ID, rec.Measurements)
	})
}

// GetByID obtiene un registro con sus mediciones; (nil, nil) si no existe.
func (r *RecordRepo) GetByID(ctx context.Context, kind entity.RecordKind, id string) (*entity.ProductionRecord, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT ` + recordColumns + ` FROM production_records WHERE kind = $1 AND id = $2`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, string(kind), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get production record: %w", err)
	}
	if err := r.loadMeasurements(ctx, []*entity.ProductionRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

func buildFilter(kind entity.RecordKind, f repository.RecordFilter) (string, []any) {
	args := []any{string(kind)}
	conds := []string{"kind = $1"}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add(canonicalStatusSQL+" = $%d", f.Status)
	}
	if f.Plant != "" {
		add("plant = $%d", f.Plant)
	}
	if f.Campaign != "" {
		add("campaign = $%d", f.Campaign)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	if f.Scope != nil {
		args = append(args, f.Scope.EmployeeID)
		if f.Scope.IncludeLegacy {
			conds = append(conds, fmt.Sprintf("(created_by = $%d OR created_by IS NULL)", len(args)))
		} else {
			conds = append(conds, fmt.Sprintf("created_by = $%d", len(args)))
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List lista registros de una etapa con filtros y paginación (más recientes primero).
func (r *RecordRepo) List(ctx context.Context, kind entity.RecordKind, f repository.RecordFilter, limit, offset int) ([]*entity.ProductionRecord, error) {
	where, args := buildFilter(kind, f)
	args = append(args, limit, offset)
	query := `SELECT ` + recordColumns + ` FROM production_records` + where +
		fmt.Sprintf(" ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list production records: %w", err)
	}
	defer rows.Close()
	var list []*entity.ProductionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan production record: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadMeasurements(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// CountByStatus cuenta registros por estado canónico.
func (r *RecordRepo) CountByStatus(ctx context.Context, kind entity.RecordKind, f repository.RecordFilter) (map[string]int, error) {
	f.Status = ""
	where, args := buildFilter(kind, f)
	query := `SELECT ` + canonicalStatusSQL + `, COUNT(*) FROM production_records` + where + ` GROUP BY 1`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count production records: %w", err)
	}
	defer rows.Close()
	out := map[string]int{entity.StatusPending: 0, entity.StatusApproved: 0}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// pendingGuard condición adicional para escrituras que solo valen sobre registros pendientes.
func pendingGuard(onlyPending bool) string {
	if !onlyPending {
		return ""
	}
	return " AND " + canonicalStatusSQL + " = 'pending'"
}

// Update reemplaza campos de dominio y mediciones. Estado, creador y aprobación no se tocan.
func (r *RecordRepo) Update(ctx context.Context, rec *entity.ProductionRecord, onlyPending bool) (bool, error) {
	if !validID(rec.ID) {
		return false, nil
	}
	updated := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE production_records SET date = $3, plant = $4, product = $5, campaign = $6,
				stage = $7, tank = $8, level_indicator = $9, notes = $10, updated_at = $11
			WHERE kind = $1 AND id = $2` + pendingGuard(onlyPending)
		tag, err := tx.Exec(ctx, query, string(rec.Kind), rec.ID, rec.Date, rec.Plant, rec.Product,
			rec.Campaign, rec.Stage, rec.Tank, rec.LevelIndicator, rec.Notes, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update production record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		updated = true
		if _, err := tx.Exec(ctx, `DELETE FROM record_measurements WHERE record_id = $1`, rec.ID); err != nil {
			return fmt.Errorf("clear measurements: %w", err)
		}
		return writeMeasurements(ctx, tx, rec.ID, rec.Measurements)
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// Delete elimina el registro (las mediciones caen por ON DELETE CASCADE).
func (r *RecordRepo) Delete(ctx context.Context, kind entity.RecordKind, id string, onlyPending bool) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM production_records WHERE kind = $1 AND id = $2`+pendingGuard(onlyPending), string(kind), id)
	if err != nil {
		return false, fmt.Errorf("delete production record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Approve transición atómica pending→approved sobre una fila.
func (r *RecordRepo) Approve(ctx context.Context, kind entity.RecordKind, id, approverID string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	query := `
		UPDATE production_records
		SET status = 'approved', approved = TRUE, approved_by = $3, approved_at = $4, updated_at = $4
		WHERE kind = $1 AND id = $2 AND ` + canonicalStatusSQL + ` = 'pending'`
	tag, err := r.db.Exec(ctx, query, string(kind), id, approverID, at)
	if err != nil {
		return false, fmt.Errorf("approve production record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *RecordRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func writeMeasurements(ctx context.Context, tx pgx.Tx, recordID string, m map[string]decimal.Decimal) error {
	if len(m) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for name, value := range m {
		batch.Queue(`INSERT INTO record_measurements (record_id, name, value) VALUES ($1, $2, $3)`, recordID, name, value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert measurements: %w", err)
	}
	return nil
}

func (r *RecordRepo) loadMeasurements(ctx context.Context, list []*entity.ProductionRecord) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*entity.ProductionRecord, len(list))
	ids := make([]string, 0, len(list))
	for _, rec := range list {
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}
	rows, err := r.db.Query(ctx, `SELECT record_id, name, value FROM record_measurements WHERE record_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load measurements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, name string
			value    decimal.Decimal
		)
		if err := rows.Scan(&id, &name, &value); err != nil {
			return fmt.Errorf("scan measurement: %w", err)
		}
		if rec, ok := byID[id]; ok {
			rec.Measurements[name] = value
		}
	}
	return rows.Err()
}
