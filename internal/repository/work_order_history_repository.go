package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// WorkOrderHistoryRepository stores audit entries.
type WorkOrderHistoryRepository interface {
	Create(ctx context.Context, history *domain.WorkOrderHistory) error
	ListByWorkOrder(ctx context.Context, workOrderID string, limit int) ([]domain.WorkOrderHistory, error)
}

type workOrderHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewWorkOrderHistoryRepository builds repository.
func NewWorkOrderHistoryRepository(pool *pgxpool.Pool) WorkOrderHistoryRepository {
	return &workOrderHistoryRepository{pool: pool}
}

func (r *workOrderHistoryRepository) Create(ctx context.Context, history *domain.WorkOrderHistory) error {
	const query = `
        INSERT INTO work_order_history (work_order_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		history.WorkOrderID,
		history.ChangedByID,
		string(history.ChangeType),
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *workOrderHistoryRepository) ListByWorkOrder(ctx context.Context, workOrderID string, limit int) ([]domain.WorkOrderHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, work_order_id, changed_by_id, change_type, old_value, new_value, created_at
        FROM work_order_history WHERE work_order_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, workOrderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkOrderHistory
	for rows.Next() {
		var history domain.WorkOrderHistory
		if err := rows.Scan(
			&history.ID,
			&history.WorkOrderID,
			&history.ChangedByID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
