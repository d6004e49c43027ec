package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// MemoryIntervalRepository is an in-process ledger store used by tests of the
// tracker, the aggregation engine and the layers above them. It mirrors the
// Postgres tables, including the partial unique index on open keys.
type MemoryIntervalRepository struct {
	mu     sync.Mutex
	nextID int64
	tables map[domain.TrackedProcess]map[int64]domain.IntervalRecord
}

// NewMemoryIntervalRepository builds an empty store.
func NewMemoryIntervalRepository() *MemoryIntervalRepository {
	return &MemoryIntervalRepository{tables: make(map[domain.TrackedProcess]map[int64]domain.IntervalRecord)}
}

func (r *MemoryIntervalRepository) tableFor(process domain.TrackedProcess) map[int64]domain.IntervalRecord {
	tbl, ok := r.tables[process]
	if !ok {
		tbl = make(map[int64]domain.IntervalRecord)
		r.tables[process] = tbl
	}
	return tbl
}

func (r *MemoryIntervalRepository) Insert(ctx context.Context, process domain.TrackedProcess, key string, openedAt time.Time, closedAt *time.Time) (*domain.IntervalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := table(process); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl := r.tableFor(process)
	if closedAt == nil {
		for _, existing := range tbl {
			if existing.Key == key && existing.Open() {
				return nil, ErrDuplicateOpenInterval
			}
		}
	}
	r.nextID++
	record := domain.IntervalRecord{ID: r.nextID, Key: key, OpenedAt: openedAt}
	if closedAt != nil {
		closed := *closedAt
		hours := closed.Sub(openedAt).Hours()
		record.ClosedAt = &closed
		record.DurationHours = &hours
	}
	tbl[record.ID] = record
	return &record, nil
}

func (r *MemoryIntervalRepository) Close(ctx context.Context, process domain.TrackedProcess, id int64, closedAt time.Time) (*domain.IntervalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl := r.tableFor(process)
	record, ok := tbl[id]
	if !ok || !record.Open() {
		return nil, pgx.ErrNoRows
	}
	hours := closedAt.Sub(record.OpenedAt).Hours()
	record.ClosedAt = &closedAt
	record.DurationHours = &hours
	tbl[id] = record
	return &record, nil
}

func (r *MemoryIntervalRepository) Delete(ctx context.Context, process domain.TrackedProcess, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl := r.tableFor(process)
	record, ok := tbl[id]
	if !ok || !record.Open() {
		return false, nil
	}
	delete(tbl, id)
	return true, nil
}

func (r *MemoryIntervalRepository) SelectOpen(ctx context.Context, process domain.TrackedProcess, key string) ([]domain.IntervalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.IntervalRecord
	for _, record := range r.tableFor(process) {
		if record.Key == key && record.Open() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return out, nil
}

func (r *MemoryIntervalRepository) SelectOpenMany(ctx context.Context, process domain.TrackedProcess, keys []string) ([]domain.IntervalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.IntervalRecord
	for _, record := range r.tableFor(process) {
		if _, ok := wanted[record.Key]; ok && record.Open() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key == out[j].Key {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (r *MemoryIntervalRepository) SelectClosed(ctx context.Context, process domain.TrackedProcess, filter ClosedIntervalFilter) ([]domain.IntervalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.IntervalRecord
	for _, record := range r.tableFor(process) {
		if record.Open() {
			continue
		}
		if filter.OpenedFrom != nil && record.OpenedAt.Before(*filter.OpenedFrom) {
			continue
		}
		if filter.OpenedTo != nil && !record.OpenedAt.Before(*filter.OpenedTo) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}

// Seed stores a record verbatim, bypassing the open-key check. It exists to
// load historical data and to reproduce inconsistent ledgers.
func (r *MemoryIntervalRepository) Seed(process domain.TrackedProcess, record domain.IntervalRecord) domain.IntervalRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	if record.ClosedAt != nil && record.DurationHours == nil {
		hours := record.ClosedAt.Sub(record.OpenedAt).Hours()
		record.DurationHours = &hours
	}
	r.tableFor(process)[record.ID] = record
	return record
}

// All returns every record of a process ordered by id.
func (r *MemoryIntervalRepository) All(process domain.TrackedProcess) []domain.IntervalRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.IntervalRecord, 0, len(r.tables[process]))
	for _, record := range r.tables[process] {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
