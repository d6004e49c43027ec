package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// WorkOrderKeyFilter selects work order keys for ledger coverage.
type WorkOrderKeyFilter struct {
	Variant     domain.Variant
	Statuses    []domain.WorkOrderStatus
	Unprocessed bool
}

// WorkOrderRepository is the primary record store as seen by the status gate.
type WorkOrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	UpdateFields(ctx context.Context, id string, mutations domain.FieldMutations) error
	ListKeys(ctx context.Context, filter WorkOrderKeyFilter) ([]string, error)
}

type workOrderRepository struct {
	pool *pgxpool.Pool
}

// NewWorkOrderRepository instantiates repository.
func NewWorkOrderRepository(pool *pgxpool.Pool) WorkOrderRepository {
	return &workOrderRepository{pool: pool}
}

func (r *workOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	const query = `
        SELECT id, referencia, tipo, estado, estado_cambiado_en, cita, motivo_resolucion,
               motivo_tecnico, presupuesto, tramitado, ipartner, created_at, updated_at
        FROM work_orders WHERE id=$1`
	var order domain.WorkOrder
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.Key,
		&order.Variant,
		&order.Status,
		&order.StatusChangedAt,
		&order.Appointment,
		&order.Resolution,
		&order.TechnicalReason,
		&order.Budget,
		&order.Processed,
		&order.Partner,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateFields writes every mutation in one statement so the commit lands as
// a single logical update.
func (r *workOrderRepository) UpdateFields(ctx context.Context, id string, mutations domain.FieldMutations) error {
	if len(mutations) == 0 {
		return nil
	}
	sets := make([]string, 0, len(mutations)+1)
	args := make([]any, 0, len(mutations)+1)
	for _, field := range domain.WritableFields {
		value, ok := mutations[field]
		if !ok {
			continue
		}
		if status, isStatus := value.(domain.WorkOrderStatus); isStatus {
			value = string(status)
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", pgx.Identifier{string(field)}.Sanitize(), len(args)))
	}
	if len(sets) != len(mutations) {
		return fmt.Errorf("unsupported field in mutation set")
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE work_orders SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workOrderRepository) ListKeys(ctx context.Context, filter WorkOrderKeyFilter) ([]string, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Variant != "" {
		args = append(args, string(filter.Variant))
		clauses = append(clauses, fmt.Sprintf("tipo=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("estado IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Unprocessed {
		clauses = append(clauses, "tramitado = FALSE")
	}
	query := fmt.Sprintf(`SELECT referencia FROM work_orders WHERE %s ORDER BY referencia`, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
