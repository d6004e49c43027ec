// Package ledger maintains timing intervals per tracked process and business
// key. At most one interval per (process, key) is open at a time; the
// operations below keep that true for concurrent, lock-free callers by
// leaning on single-row atomicity in the store.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const storeName = "ledger store"

// Tracker owns open/close/cancel/ensure-open against the ledger store.
type Tracker struct {
	store   repository.IntervalRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration
	now     func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMetrics attaches ledger counters.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(t *Tracker) { t.metrics = metrics }
}

// NewTracker builds a tracker. timeout bounds each individual store call.
func NewTracker(store repository.IntervalRepository, logger *zap.Logger, timeout time.Duration, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		store:   store,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CloseRequest carries the reference times for a close.
type CloseRequest struct {
	// ClosedAt defaults to now.
	ClosedAt time.Time
	// BackfillOpenedAt is used as opened_at when no open interval exists.
	// Zero means backfill is not applicable.
	BackfillOpenedAt time.Time
}

// CloseResult describes what Close did.
type CloseResult struct {
	Record     domain.IntervalRecord
	Backfilled bool
}

// Open starts an interval for key unless one is already open. It reports
// whether this call inserted the record.
func (t *Tracker) Open(ctx context.Context, process domain.TrackedProcess, key string) (bool, error) {
	key, err := validate(process, key)
	if err != nil {
		return false, err
	}
	open, err := t.selectOpen(ctx, process, key)
	if err != nil {
		t.metrics.RecordLedger(process, "open", "error")
		return false, err
	}
	if len(open) > 0 {
		t.reportDuplicates(process, key, open)
		t.metrics.RecordLedger(process, "open", "noop")
		return false, nil
	}
	inserted, err := t.insertOpen(ctx, process, key)
	if err != nil {
		t.metrics.RecordLedger(process, "open", "error")
		return false, err
	}
	if inserted {
		t.metrics.RecordLedger(process, "open", "opened")
	} else {
		t.metrics.RecordLedger(process, "open", "noop")
	}
	return inserted, nil
}

// Close closes the most recently opened interval for key. When none is open
// it backfills a closed interval from req.BackfillOpenedAt, so every close
// yields a measurable interval.
func (t *Tracker) Close(ctx context.Context, process domain.TrackedProcess, key string, req CloseRequest) (*CloseResult, error) {
	key, err := validate(process, key)
	if err != nil {
		return nil, err
	}
	closedAt := req.ClosedAt
	if closedAt.IsZero() {
		closedAt = t.now()
	}

	open, err := t.selectOpen(ctx, process, key)
	if err != nil {
		t.metrics.RecordLedger(process, "close", "error")
		return nil, err
	}

	if len(open) > 0 {
		t.reportDuplicates(process, key, open)
		target := latest(open)
		var closed *domain.IntervalRecord
		err := t.call(ctx, func(ctx context.Context) error {
			var err error
			closed, err = t.store.Close(ctx, process, target.ID, closedAt)
			return err
		})
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// a concurrent caller closed or cancelled it first
			t.logger.Debug("interval already closed",
				zap.String("process", string(process)),
				zap.String("key", key),
				zap.Int64("interval_id", target.ID))
			t.metrics.RecordLedger(process, "close", "noop")
			return &CloseResult{Record: target}, nil
		case err != nil:
			t.metrics.RecordLedger(process, "close", "error")
			return nil, apperrors.WrapStoreError(storeName, "interval", err)
		}
		t.metrics.RecordLedger(process, "close", "closed")
		return &CloseResult{Record: *closed}, nil
	}

	if req.BackfillOpenedAt.IsZero() {
		t.metrics.RecordLedger(process, "close", "not_found")
		return nil, apperrors.NewNotFound("open interval", map[string]any{
			"process": string(process),
			"key":     key,
		})
	}
	if req.BackfillOpenedAt.After(closedAt) {
		return nil, apperrors.NewValidationError("backfill opened_at is after closed_at", map[string]any{
			"opened_at": req.BackfillOpenedAt,
			"closed_at": closedAt,
		})
	}

	var record *domain.IntervalRecord
	err = t.call(ctx, func(ctx context.Context) error {
		var err error
		record, err = t.store.Insert(ctx, process, key, req.BackfillOpenedAt, &closedAt)
		return err
	})
	if err != nil {
		t.metrics.RecordLedger(process, "close", "error")
		return nil, apperrors.WrapStoreError(storeName, "interval", err)
	}
	t.logger.Info("backfilled interval",
		zap.String("process", string(process)),
		zap.String("key", key),
		zap.Time("opened_at", req.BackfillOpenedAt),
		zap.Time("closed_at", closedAt))
	t.metrics.RecordLedger(process, "close", "backfilled")
	return &CloseResult{Record: *record, Backfilled: true}, nil
}

// Cancel deletes the open interval for key, if any. Closed intervals are never
// deleted. It reports whether a record was removed.
func (t *Tracker) Cancel(ctx context.Context, process domain.TrackedProcess, key string) (bool, error) {
	key, err := validate(process, key)
	if err != nil {
		return false, err
	}
	open, err := t.selectOpen(ctx, process, key)
	if err != nil {
		t.metrics.RecordLedger(process, "cancel", "error")
		return false, err
	}
	if len(open) == 0 {
		t.metrics.RecordLedger(process, "cancel", "noop")
		return false, nil
	}
	t.reportDuplicates(process, key, open)
	target := latest(open)

	var removed bool
	err = t.call(ctx, func(ctx context.Context) error {
		var err error
		removed, err = t.store.Delete(ctx, process, target.ID)
		return err
	})
	if err != nil {
		t.metrics.RecordLedger(process, "cancel", "error")
		return false, apperrors.WrapStoreError(storeName, "interval", err)
	}
	if removed {
		t.metrics.RecordLedger(process, "cancel", "cancelled")
	} else {
		t.metrics.RecordLedger(process, "cancel", "noop")
	}
	return removed, nil
}

// EnsureOpen guarantees an open interval for every key. Keys that already
// have one are left alone; it returns the keys it inserted, sorted.
func (t *Tracker) EnsureOpen(ctx context.Context, process domain.TrackedProcess, keys []string) ([]string, error) {
	if !process.Valid() {
		return nil, apperrors.NewValidationError("unknown tracked process", map[string]any{"process": string(process)})
	}
	wanted := normalizeKeys(keys)
	if len(wanted) == 0 {
		return nil, nil
	}

	var open []domain.IntervalRecord
	err := t.call(ctx, func(ctx context.Context) error {
		var err error
		open, err = t.store.SelectOpenMany(ctx, process, wanted)
		return err
	})
	if err != nil {
		t.metrics.RecordLedger(process, "ensure_open", "error")
		return nil, apperrors.WrapStoreError(storeName, "interval", err)
	}

	have := make(map[string]struct{}, len(open))
	for _, record := range open {
		have[record.Key] = struct{}{}
	}

	var (
		inserted []string
		errs     []error
	)
	for _, key := range wanted {
		if _, ok := have[key]; ok {
			continue
		}
		ok, err := t.insertOpen(ctx, process, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			inserted = append(inserted, key)
		}
	}
	if len(inserted) > 0 {
		t.logger.Info("ensured open intervals",
			zap.String("process", string(process)),
			zap.Int("requested", len(wanted)),
			zap.Int("inserted", len(inserted)))
	}
	for range inserted {
		t.metrics.RecordLedger(process, "ensure_open", "opened")
	}
	if len(errs) > 0 {
		t.metrics.RecordLedger(process, "ensure_open", "error")
		return inserted, errors.Join(errs...)
	}
	return inserted, nil
}

// insertOpen inserts an open interval stamped now. A unique-index conflict
// means a concurrent caller won the race, which is success.
func (t *Tracker) insertOpen(ctx context.Context, process domain.TrackedProcess, key string) (bool, error) {
	openedAt := t.now()
	err := t.call(ctx, func(ctx context.Context) error {
		_, err := t.store.Insert(ctx, process, key, openedAt, nil)
		return err
	})
	if errors.Is(err, repository.ErrDuplicateOpenInterval) {
		t.logger.Debug("concurrent open detected",
			zap.String("process", string(process)),
			zap.String("key", key))
		return false, nil
	}
	if err != nil {
		return false, apperrors.WrapStoreError(storeName, "interval", err)
	}
	return true, nil
}

func (t *Tracker) selectOpen(ctx context.Context, process domain.TrackedProcess, key string) ([]domain.IntervalRecord, error) {
	var open []domain.IntervalRecord
	err := t.call(ctx, func(ctx context.Context) error {
		var err error
		open, err = t.store.SelectOpen(ctx, process, key)
		return err
	})
	if err != nil {
		return nil, apperrors.WrapStoreError(storeName, "interval", err)
	}
	return open, nil
}

// reportDuplicates logs an invariant violation when several intervals are open
// for the same key. Nothing is corrected here.
func (t *Tracker) reportDuplicates(process domain.TrackedProcess, key string, open []domain.IntervalRecord) {
	if len(open) < 2 {
		return
	}
	ids := make([]int64, 0, len(open))
	for _, record := range open {
		ids = append(ids, record.ID)
	}
	violation := apperrors.NewInvariantViolation("multiple open intervals", map[string]any{
		"process":      string(process),
		"key":          key,
		"interval_ids": ids,
	})
	t.logger.Warn("multiple open intervals",
		zap.String("code", apperrors.CodeInvariantViolation),
		zap.String("process", string(process)),
		zap.String("key", key),
		zap.Int64s("interval_ids", ids),
		zap.Error(violation))
	t.metrics.RecordLedger(process, "invariant", "violation")
}

func (t *Tracker) call(ctx context.Context, fn func(context.Context) error) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return fn(ctx)
}

// latest picks the open interval with the greatest opened_at, ties broken by id.
func latest(open []domain.IntervalRecord) domain.IntervalRecord {
	best := open[0]
	for _, record := range open[1:] {
		if record.OpenedAt.After(best.OpenedAt) ||
			(record.OpenedAt.Equal(best.OpenedAt) && record.ID > best.ID) {
			best = record
		}
	}
	return best
}

// validate returns the canonical form of key. Every operation stores and
// looks up keys in this form.
func validate(process domain.TrackedProcess, key string) (string, error) {
	if !process.Valid() {
		return "", apperrors.NewValidationError("unknown tracked process", map[string]any{"process": string(process)})
	}
	key = canonicalKey(key)
	if key == "" {
		return "", apperrors.NewValidationError("interval key required", nil)
	}
	return key, nil
}

func canonicalKey(key string) string {
	return strings.TrimSpace(key)
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = canonicalKey(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
