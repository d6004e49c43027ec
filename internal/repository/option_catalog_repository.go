package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OptionCatalogRepository reads externally maintained option lists such as
// the budget catalog.
type OptionCatalogRepository interface {
	ListOptions(ctx context.Context, kind string) ([]string, error)
}

type optionCatalogRepository struct {
	pool *pgxpool.Pool
}

// NewOptionCatalogRepository instantiates repository.
func NewOptionCatalogRepository(pool *pgxpool.Pool) OptionCatalogRepository {
	return &optionCatalogRepository{pool: pool}
}

func (r *optionCatalogRepository) ListOptions(ctx context.Context, kind string) ([]string, error) {
	const query = `
        SELECT value FROM option_catalog
        WHERE kind=$1 AND active
        ORDER BY position, value`
	rows, err := r.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		options = append(options, value)
	}
	return options, rows.Err()
}
