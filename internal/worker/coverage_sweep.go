package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/gate"
	"github.com/spec-kit/workorder-service/internal/repository"
)

// KeySource lists the work order keys matching a coverage rule.
type KeySource interface {
	ListKeys(ctx context.Context, filter repository.WorkOrderKeyFilter) ([]string, error)
}

// LedgerOpener is the part of the interval tracker the sweep needs.
type LedgerOpener interface {
	EnsureOpen(ctx context.Context, process domain.TrackedProcess, keys []string) ([]string, error)
}

// RetryCounter reports how many failed ledger writes are parked.
type RetryCounter interface {
	PendingRetries(ctx context.Context) (int64, error)
}

// SweepReport summarizes one coverage sweep.
type SweepReport struct {
	Inserted       map[domain.TrackedProcess][]string
	Failed         map[domain.TrackedProcess]error
	PendingRetries int64
}

// CoverageSweep makes sure every work order sitting in a trackable state has
// an open interval, repairing missed open calls.
type CoverageSweep struct {
	orders  KeySource
	ledger  LedgerOpener
	retries RetryCounter
	logger  *zap.Logger
	timeout time.Duration
}

// NewCoverageSweep builds the sweep. retries may be nil.
func NewCoverageSweep(orders KeySource, ledger LedgerOpener, retries RetryCounter, logger *zap.Logger, timeout time.Duration) *CoverageSweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoverageSweep{orders: orders, ledger: ledger, retries: retries, logger: logger, timeout: timeout}
}

// Run sweeps every tracked process once. A failing process does not stop the
// others.
func (s *CoverageSweep) Run(ctx context.Context) SweepReport {
	report := SweepReport{
		Inserted: map[domain.TrackedProcess][]string{},
		Failed:   map[domain.TrackedProcess]error{},
	}
	for _, process := range domain.TrackedProcesses {
		inserted, err := s.sweepProcess(ctx, process)
		if err != nil {
			report.Failed[process] = err
			s.logger.Warn("coverage sweep failed", zap.String("process", string(process)), zap.Error(err))
			continue
		}
		if len(inserted) > 0 {
			report.Inserted[process] = inserted
			s.logger.Info("coverage sweep opened intervals",
				zap.String("process", string(process)),
				zap.Strings("keys", inserted))
		}
	}

	if s.retries != nil {
		pending, err := s.retries.PendingRetries(ctx)
		if err != nil {
			s.logger.Warn("retry queue unavailable", zap.Error(err))
		} else {
			report.PendingRetries = pending
			if pending > 0 {
				s.logger.Warn("ledger writes awaiting retry", zap.Int64("pending", pending))
			}
		}
	}
	return report
}

func (s *CoverageSweep) sweepProcess(ctx context.Context, process domain.TrackedProcess) ([]string, error) {
	coverage, ok := gate.CoverageFor(process)
	if !ok {
		return nil, fmt.Errorf("no coverage rule for process %q", process)
	}
	listCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	keys, err := s.orders.ListKeys(listCtx, repository.WorkOrderKeyFilter{
		Variant:     coverage.Variant,
		Statuses:    coverage.Statuses,
		Unprocessed: coverage.Unprocessed,
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return s.ledger.EnsureOpen(ctx, process, keys)
}

// StartCoverageSweep schedules the sweep on spec (standard cron syntax or a
// descriptor such as "@every 15m"). An empty spec disables scheduling and
// returns a nil scheduler. Overlapping runs are skipped.
func StartCoverageSweep(ctx context.Context, spec string, sweep *CoverageSweep, loc *time.Location, logger *zap.Logger) (*cron.Cron, error) {
	if spec == "" || sweep == nil {
		return nil, nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	scheduler := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := scheduler.AddFunc(spec, func() { sweep.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	scheduler.Start()
	logger.Info("coverage sweep scheduled", zap.String("schedule", spec))
	return scheduler, nil
}
