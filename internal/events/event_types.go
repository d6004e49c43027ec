package events

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/gate"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWorkOrderStatusChanged   EventType = "work_order_status_changed"
	EventWorkOrderPartnerAssigned EventType = "work_order_partner_assigned"
	EventLedgerWriteFailed        EventType = "ledger_write_failed"
)

// Actor identifies the operator behind an event. Empty for scheduled jobs.
type Actor struct {
	OperatorID string              `json:"operator_id,omitempty"`
	Role       domain.OperatorRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	WorkOrderID string    `json:"work_order_id,omitempty"`
	Actor       Actor     `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	Key       string                 `json:"key"`
	Variant   domain.Variant         `json:"variant"`
	OldStatus domain.WorkOrderStatus `json:"old_status"`
	NewStatus domain.WorkOrderStatus `json:"new_status"`
}

// PartnerAssignedPayload payload.
type PartnerAssignedPayload struct {
	Key        string  `json:"key"`
	OldPartner *string `json:"old_partner,omitempty"`
	NewPartner *string `json:"new_partner,omitempty"`
}

// LedgerWriteFailedPayload describes a ledger call that failed after the
// primary write had already been committed.
type LedgerWriteFailedPayload struct {
	Op               gate.LedgerOp         `json:"op"`
	Process          domain.TrackedProcess `json:"process"`
	Key              string                `json:"key"`
	ClosedAt         *time.Time            `json:"closed_at,omitempty"`
	BackfillOpenedAt *time.Time            `json:"backfill_opened_at,omitempty"`
	Error            string                `json:"error"`
}
