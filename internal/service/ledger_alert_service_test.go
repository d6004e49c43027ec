package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/gate"
)

func ledgerFailure() events.Event {
	return events.Event{
		ID:          "evt-1",
		Type:        events.EventLedgerWriteFailed,
		WorkOrderID: "wo-1",
		Timestamp:   commitAt,
		Payload: events.LedgerWriteFailedPayload{
			Op:      gate.LedgerClose,
			Process: domain.ProcessAdvisory,
			Key:     "KEY-1",
			Error:   "ledger unavailable",
		},
	}
}

func TestLedgerFailureIsQueuedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher()
	queue := &fakeQueue{}
	alerts := NewLedgerAlertService(dispatcher, queue, zap.New(core))
	alerts.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), ledgerFailure()))

	pending, err := alerts.PendingRetries(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
	item := queue.items[0].(RetryItem)
	assert.Equal(t, "evt-1", item.EventID)
	assert.Equal(t, domain.ProcessAdvisory, item.Write.Process)
	assert.True(t, commitAt.Equal(item.FailedAt))

	entries := logs.FilterMessage("ledger write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "asesoramiento", entries[0].ContextMap()["process"])
}

func TestLedgerFailureQueuePushErrorSurfaces(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	queue := &fakeQueue{pushErr: errStoreDown}
	NewLedgerAlertService(dispatcher, queue, zap.NewNop()).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), ledgerFailure())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestLedgerAlertWithoutQueue(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	alerts := NewLedgerAlertService(dispatcher, nil, zap.NewNop())
	alerts.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), ledgerFailure()))
	pending, err := alerts.PendingRetries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}
