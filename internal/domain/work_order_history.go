package domain

import "time"

// WorkOrderChangeType captures what changed in a history entry.
type WorkOrderChangeType string

const (
	ChangeTypeStatus  WorkOrderChangeType = "STATUS_CHANGE"
	ChangeTypePartner WorkOrderChangeType = "PARTNER_CHANGE"
)

// WorkOrderHistory is an immutable audit trail entry.
type WorkOrderHistory struct {
	ID          string
	WorkOrderID string
	ChangedByID *string
	ChangeType  WorkOrderChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
