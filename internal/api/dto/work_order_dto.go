package dto

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/gate"
)

// WorkOrderResponse represents a work order.
type WorkOrderResponse struct {
	ID              string                 `json:"id"`
	Key             string                 `json:"key"`
	Variant         domain.Variant         `json:"variant"`
	Status          domain.WorkOrderStatus `json:"status"`
	StatusChangedAt *time.Time             `json:"status_changed_at"`
	Appointment     *time.Time             `json:"appointment"`
	Resolution      *string                `json:"resolution"`
	TechnicalReason *string                `json:"technical_reason"`
	Budget          *string                `json:"budget"`
	Processed       bool                   `json:"processed"`
	Partner         *string                `json:"partner"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// DecisionResponse answers a requested status change.
type DecisionResponse struct {
	Pending gate.PendingTransition `json:"pending"`
	Options []string               `json:"options,omitempty"`
}

// CommitTransitionRequest payload. From is the status the decision was made
// against.
type CommitTransitionRequest struct {
	From        domain.WorkOrderStatus `json:"from"`
	Target      domain.WorkOrderStatus `json:"target"`
	Appointment *time.Time             `json:"appointment"`
	Value       string                 `json:"value"`
}

// AssignPartnerRequest payload. An empty partner clears the assignment.
type AssignPartnerRequest struct {
	Partner string `json:"partner"`
}

// LedgerWarningResponse reports a ledger call that failed after the work
// order was saved.
type LedgerWarningResponse struct {
	Op      string `json:"op"`
	Process string `json:"process"`
	Key     string `json:"key"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransitionResponse is returned by commit and partner assignment.
type TransitionResponse struct {
	WorkOrder WorkOrderResponse       `json:"work_order"`
	Applied   bool                    `json:"applied"`
	Warnings  []LedgerWarningResponse `json:"warnings"`
}

// HistoryEntryResponse is one audit entry.
type HistoryEntryResponse struct {
	ID          string         `json:"id"`
	ChangedByID *string        `json:"changed_by_id"`
	ChangeType  string         `json:"change_type"`
	OldValue    map[string]any `json:"old_value"`
	NewValue    map[string]any `json:"new_value"`
	CreatedAt   time.Time      `json:"created_at"`
}
