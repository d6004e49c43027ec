package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// ErrDuplicateOpenInterval is returned by Insert when another open interval
// already exists for the key.
var ErrDuplicateOpenInterval = errors.New("open interval already exists")

const uniqueViolation = "23505"

// ClosedIntervalFilter narrows SelectClosed scans.
type ClosedIntervalFilter struct {
	OpenedFrom *time.Time
	OpenedTo   *time.Time
}

// IntervalRepository is the ledger store API. Every method addresses the
// table of the given process.
type IntervalRepository interface {
	Insert(ctx context.Context, process domain.TrackedProcess, key string, openedAt time.Time, closedAt *time.Time) (*domain.IntervalRecord, error)
	Close(ctx context.Context, process domain.TrackedProcess, id int64, closedAt time.Time) (*domain.IntervalRecord, error)
	Delete(ctx context.Context, process domain.TrackedProcess, id int64) (bool, error)
	SelectOpen(ctx context.Context, process domain.TrackedProcess, key string) ([]domain.IntervalRecord, error)
	SelectOpenMany(ctx context.Context, process domain.TrackedProcess, keys []string) ([]domain.IntervalRecord, error)
	SelectClosed(ctx context.Context, process domain.TrackedProcess, filter ClosedIntervalFilter) ([]domain.IntervalRecord, error)
}

type intervalRepository struct {
	pool *pgxpool.Pool
}

// NewIntervalRepository instantiates repository.
func NewIntervalRepository(pool *pgxpool.Pool) IntervalRepository {
	return &intervalRepository{pool: pool}
}

func table(process domain.TrackedProcess) (string, error) {
	if !process.Valid() {
		return "", fmt.Errorf("unknown tracked process %q", process)
	}
	return pgx.Identifier{process.TableName()}.Sanitize(), nil
}

// Insert creates an interval. duration_hours is derived in SQL when closedAt
// is supplied.
func (r *intervalRepository) Insert(ctx context.Context, process domain.TrackedProcess, key string, openedAt time.Time, closedAt *time.Time) (*domain.IntervalRecord, error) {
	tbl, err := table(process)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        INSERT INTO %s (key, opened_at, closed_at, duration_hours)
        VALUES ($1, $2, $3::timestamptz, EXTRACT(EPOCH FROM ($3::timestamptz - $2::timestamptz)) / 3600.0)
        RETURNING id, key, opened_at, closed_at, duration_hours`, tbl)
	record, err := scanInterval(r.pool.QueryRow(ctx, query, key, openedAt, closedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateOpenInterval
		}
		return nil, err
	}
	return record, nil
}

// Close sets closed_at on a still-open interval. It returns pgx.ErrNoRows when
// the interval was closed or deleted concurrently.
func (r *intervalRepository) Close(ctx context.Context, process domain.TrackedProcess, id int64, closedAt time.Time) (*domain.IntervalRecord, error) {
	tbl, err := table(process)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        UPDATE %s SET closed_at=$2, duration_hours=EXTRACT(EPOCH FROM ($2::timestamptz - opened_at)) / 3600.0
        WHERE id=$1 AND closed_at IS NULL
        RETURNING id, key, opened_at, closed_at, duration_hours`, tbl)
	return scanInterval(r.pool.QueryRow(ctx, query, id, closedAt))
}

// Delete removes an interval only while it is still open.
func (r *intervalRepository) Delete(ctx context.Context, process domain.TrackedProcess, id int64) (bool, error) {
	tbl, err := table(process)
	if err != nil {
		return false, err
	}
	cmd, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1 AND closed_at IS NULL`, tbl), id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// SelectOpen returns open intervals for key, most recently opened first.
func (r *intervalRepository) SelectOpen(ctx context.Context, process domain.TrackedProcess, key string) ([]domain.IntervalRecord, error) {
	tbl, err := table(process)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        SELECT id, key, opened_at, closed_at, duration_hours
        FROM %s WHERE key=$1 AND closed_at IS NULL
        ORDER BY opened_at DESC, id DESC`, tbl)
	rows, err := r.pool.Query(ctx, query, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

func (r *intervalRepository) SelectOpenMany(ctx context.Context, process domain.TrackedProcess, keys []string) ([]domain.IntervalRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	tbl, err := table(process)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        SELECT id, key, opened_at, closed_at, duration_hours
        FROM %s WHERE key = ANY($1) AND closed_at IS NULL
        ORDER BY key, opened_at DESC`, tbl)
	rows, err := r.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

func (r *intervalRepository) SelectClosed(ctx context.Context, process domain.TrackedProcess, filter ClosedIntervalFilter) ([]domain.IntervalRecord, error) {
	tbl, err := table(process)
	if err != nil {
		return nil, err
	}
	clauses := []string{"closed_at IS NOT NULL"}
	args := []any{}
	if filter.OpenedFrom != nil {
		args = append(args, *filter.OpenedFrom)
		clauses = append(clauses, fmt.Sprintf("opened_at >= $%d", len(args)))
	}
	if filter.OpenedTo != nil {
		args = append(args, *filter.OpenedTo)
		clauses = append(clauses, fmt.Sprintf("opened_at < $%d", len(args)))
	}
	query := fmt.Sprintf(`
        SELECT id, key, opened_at, closed_at, duration_hours
        FROM %s WHERE %s ORDER BY opened_at ASC, id ASC`, tbl, strings.Join(clauses, " AND "))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

func scanInterval(row pgx.Row) (*domain.IntervalRecord, error) {
	var record domain.IntervalRecord
	if err := row.Scan(
		&record.ID,
		&record.Key,
		&record.OpenedAt,
		&record.ClosedAt,
		&record.DurationHours,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func scanIntervals(rows pgx.Rows) ([]domain.IntervalRecord, error) {
	var result []domain.IntervalRecord
	for rows.Next() {
		record, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}
