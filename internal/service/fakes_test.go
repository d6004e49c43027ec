package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
)

var errStoreDown = errors.New("connection refused")

type fakeWorkOrders struct {
	mu        sync.Mutex
	orders    map[string]domain.WorkOrder
	updates   []domain.FieldMutations
	updateErr error
	getErr    error
}

func newFakeWorkOrders(orders ...domain.WorkOrder) *fakeWorkOrders {
	f := &fakeWorkOrders{orders: map[string]domain.WorkOrder{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeWorkOrders) GetByID(_ context.Context, id string) (*domain.WorkOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &o, nil
}

func (f *fakeWorkOrders) UpdateFields(_ context.Context, id string, m domain.FieldMutations) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	o, ok := f.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	f.orders[id] = o.Apply(m)
	f.updates = append(f.updates, m)
	return nil
}

func (f *fakeWorkOrders) ListKeys(_ context.Context, filter repository.WorkOrderKeyFilter) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, o := range f.orders {
		if filter.Variant != "" && o.Variant != filter.Variant {
			continue
		}
		if filter.Unprocessed && o.Processed {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, o.Status) {
			continue
		}
		keys = append(keys, o.Key)
	}
	return keys, nil
}

func containsStatus(list []domain.WorkOrderStatus, s domain.WorkOrderStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

type fakeHistory struct {
	mu        sync.Mutex
	entries   []domain.WorkOrderHistory
	createErr error
}

func (f *fakeHistory) Create(_ context.Context, h *domain.WorkOrderHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	h.ID = "h-" + h.WorkOrderID
	h.CreatedAt = time.Now()
	f.entries = append(f.entries, *h)
	return nil
}

func (f *fakeHistory) ListByWorkOrder(_ context.Context, id string, _ int) ([]domain.WorkOrderHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkOrderHistory
	for _, h := range f.entries {
		if h.WorkOrderID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeOptions struct {
	calls   int
	options []string
	err     error
}

func (f *fakeOptions) ListOptions(_ context.Context, _ string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string{}, f.options...), nil
}

type fakeCache struct {
	data   map[string][]string
	getErr error
	setErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]string{}}
}

func (c *fakeCache) Get(_ context.Context, kind string) ([]string, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[kind]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, kind string, options []string, _ time.Duration) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[kind] = options
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	items   []any
	pushErr error
}

func (q *fakeQueue) Push(_ context.Context, item any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.items = append(q.items, item)
	return nil
}

func (q *fakeQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// brokenStore fails every ledger call.
type brokenStore struct {
	repository.IntervalRepository
}

func (brokenStore) SelectOpen(context.Context, domain.TrackedProcess, string) ([]domain.IntervalRecord, error) {
	return nil, errStoreDown
}

func (brokenStore) SelectOpenMany(context.Context, domain.TrackedProcess, []string) ([]domain.IntervalRecord, error) {
	return nil, errStoreDown
}
