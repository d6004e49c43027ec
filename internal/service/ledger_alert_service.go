package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/repository"
)

// RetryItem is what lands on the retry queue for a failed ledger write.
type RetryItem struct {
	EventID     string                          `json:"event_id"`
	WorkOrderID string                          `json:"work_order_id"`
	FailedAt    time.Time                       `json:"failed_at"`
	Write       events.LedgerWriteFailedPayload `json:"write"`
}

// LedgerAlertService reacts to work order events: it logs transitions and
// parks failed ledger writes on the retry queue for out-of-band handling.
type LedgerAlertService struct {
	dispatcher events.Dispatcher
	queue      repository.RetryQueue
	logger     *zap.Logger
}

// NewLedgerAlertService creates the service. queue may be nil, in which case
// failures are only logged.
func NewLedgerAlertService(dispatcher events.Dispatcher, queue repository.RetryQueue, logger *zap.Logger) *LedgerAlertService {
	return &LedgerAlertService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *LedgerAlertService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventWorkOrderStatusChanged, a.handleStatusChanged)
	a.dispatcher.Subscribe(events.EventWorkOrderPartnerAssigned, a.handlePartnerAssigned)
	a.dispatcher.Subscribe(events.EventLedgerWriteFailed, a.handleLedgerWriteFailed)
}

// PendingRetries reports the retry queue depth.
func (a *LedgerAlertService) PendingRetries(ctx context.Context) (int64, error) {
	if a.queue == nil {
		return 0, nil
	}
	return a.queue.Len(ctx)
}

func (a *LedgerAlertService) handleStatusChanged(_ context.Context, event events.Event) error {
	a.logger.Info("WorkOrderStatusChanged", zap.String("work_order_id", event.WorkOrderID), zap.Any("payload", event.Payload))
	return nil
}

func (a *LedgerAlertService) handlePartnerAssigned(_ context.Context, event events.Event) error {
	a.logger.Info("WorkOrderPartnerAssigned", zap.String("work_order_id", event.WorkOrderID), zap.Any("payload", event.Payload))
	return nil
}

func (a *LedgerAlertService) handleLedgerWriteFailed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LedgerWriteFailedPayload)
	if !ok {
		a.logger.Warn("ledger failure event without payload", zap.String("event_id", event.ID))
		return nil
	}
	a.logger.Warn("ledger write failed",
		zap.String("work_order_id", event.WorkOrderID),
		zap.String("process", string(payload.Process)),
		zap.String("op", string(payload.Op)),
		zap.String("key", payload.Key),
		zap.String("error", payload.Error))

	if a.queue == nil {
		return nil
	}
	item := RetryItem{
		EventID:     event.ID,
		WorkOrderID: event.WorkOrderID,
		FailedAt:    event.Timestamp,
		Write:       payload,
	}
	if err := a.queue.Push(ctx, item); err != nil {
		a.logger.Error("retry queue push failed", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	return nil
}
