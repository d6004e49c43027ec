package gate

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const maxTechnicalReasonLength = 500

// PendingTransition remembers a requested status change while its
// supplemental input is being collected. It is handed back to Commit instead
// of living in shared state.
type PendingTransition struct {
	WorkOrderID string                 `json:"work_order_id"`
	From        domain.WorkOrderStatus `json:"from"`
	Target      domain.WorkOrderStatus `json:"target"`
	Outcome     Outcome                `json:"outcome"`
	Requirement *Requirement           `json:"requirement,omitempty"`
}

// Begin validates the target and returns the pending transition for order.
func (p Policy) Begin(order domain.WorkOrder, target domain.WorkOrderStatus) (PendingTransition, error) {
	if target != "" && !target.Valid() {
		return PendingTransition{}, apperrors.NewValidationError("unknown target status", map[string]any{"target": string(target)})
	}
	decision := p.Decide(order.Status, target)
	pending := PendingTransition{
		WorkOrderID: order.ID,
		From:        order.Status,
		Target:      target,
		Outcome:     decision.Outcome,
	}
	if decision.RequiresInput() {
		req := decision.Requirement
		pending.Requirement = &req
	}
	return pending, nil
}

// Supplement is the collected supplemental value. Appointment is used by
// InputAppointment; Value by every other kind.
type Supplement struct {
	Appointment *time.Time
	Value       string
}

// CommitInput bundles everything Commit needs besides the work order.
type CommitInput struct {
	Pending    PendingTransition
	Supplement Supplement
	// BudgetOptions is the catalog the budget value must belong to.
	BudgetOptions []string
	Now           time.Time
}

// LedgerOp is an interval tracker operation.
type LedgerOp string

const (
	LedgerOpen   LedgerOp = "open"
	LedgerClose  LedgerOp = "close"
	LedgerCancel LedgerOp = "cancel"
)

// LedgerAction is one interval tracker call to issue after the primary write.
type LedgerAction struct {
	Op               LedgerOp
	Process          domain.TrackedProcess
	Key              string
	ClosedAt         time.Time
	BackfillOpenedAt time.Time
}

// Plan is what a commit writes: field mutations for the primary store, then
// ledger calls. An empty plan is a no-op.
type Plan struct {
	Mutations domain.FieldMutations
	Ledger    []LedgerAction
}

// Empty reports whether the plan changes nothing.
func (pl *Plan) Empty() bool {
	return pl == nil || (len(pl.Mutations) == 0 && len(pl.Ledger) == 0)
}

// Commit validates the supplemental input and derives the plan. It never
// touches order; the caller applies the mutations once the remote write
// succeeds.
func (p Policy) Commit(order domain.WorkOrder, in CommitInput) (*Plan, error) {
	pending := in.Pending
	if pending.WorkOrderID != "" && pending.WorkOrderID != order.ID {
		return nil, apperrors.NewValidationError("pending transition belongs to another work order", map[string]any{
			"work_order_id": order.ID,
			"pending_id":    pending.WorkOrderID,
		})
	}
	if pending.From != order.Status {
		return nil, apperrors.NewConflict("work order status changed since the transition was requested", map[string]any{
			"expected": string(pending.From),
			"actual":   string(order.Status),
		})
	}
	if pending.Target != "" && !pending.Target.Valid() {
		return nil, apperrors.NewValidationError("unknown target status", map[string]any{"target": string(pending.Target)})
	}

	decision := p.Decide(order.Status, pending.Target)
	if decision.Outcome == OutcomeNoOp {
		return &Plan{}, nil
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	m := domain.FieldMutations{
		domain.FieldStatus:          pending.Target,
		domain.FieldStatusChangedAt: now,
	}
	if decision.RequiresInput() {
		if err := applySupplement(m, decision.Requirement, in.Supplement, in.BudgetOptions); err != nil {
			return nil, err
		}
	}

	plan := &Plan{Mutations: m}
	if p.processingFlag {
		p.applyProcessingReset(plan, order)
	}
	if p.binding != nil {
		p.applyBinding(plan, order, pending.Target, now)
	}
	return plan, nil
}

func applySupplement(m domain.FieldMutations, req Requirement, s Supplement, budgetOptions []string) error {
	switch req.Kind {
	case InputAppointment:
		if s.Appointment == nil || s.Appointment.IsZero() {
			return apperrors.NewValidationError("appointment time required", nil)
		}
		m[domain.FieldAppointment] = *s.Appointment
		m[domain.FieldResolution] = nil
	case InputTechnicalReason:
		reason := strings.TrimSpace(s.Value)
		if reason == "" {
			return apperrors.NewValidationError("technical reason required", nil)
		}
		if utf8.RuneCountInString(reason) > maxTechnicalReasonLength {
			return apperrors.NewValidationError("technical reason too long", map[string]any{"max": maxTechnicalReasonLength})
		}
		m[domain.FieldTechnicalReason] = reason
		m[domain.FieldResolution] = nil
	case InputResolution:
		if !req.ReasonSet.Contains(s.Value) {
			return apperrors.NewValidationError("resolution reason not allowed", map[string]any{
				"reason_set": string(req.ReasonSet),
				"allowed":    req.ReasonSet.Reasons(),
			})
		}
		m[domain.FieldResolution] = s.Value
		m[domain.FieldTechnicalReason] = nil
	case InputBudget:
		budget := strings.TrimSpace(s.Value)
		if budget == "" {
			return apperrors.NewValidationError("budget selection required", nil)
		}
		if !contains(budgetOptions, budget) {
			return apperrors.NewValidationError("budget not in catalog", map[string]any{"budget": budget})
		}
		m[domain.FieldBudget] = budget
	}
	return nil
}

// applyProcessingReset is the installation-only processing flag rule: every
// status change marks the order as not processed and starts a processing
// interval.
func (p Policy) applyProcessingReset(plan *Plan, order domain.WorkOrder) {
	plan.Mutations[domain.FieldProcessed] = false
	plan.Ledger = append(plan.Ledger, LedgerAction{
		Op:      LedgerOpen,
		Process: domain.ProcessProcessing,
		Key:     order.Key,
	})
}

func (p Policy) applyBinding(plan *Plan, order domain.WorkOrder, target domain.WorkOrderStatus, now time.Time) {
	b := p.binding
	switch {
	case b.tracks(target):
		plan.Ledger = append(plan.Ledger, LedgerAction{Op: LedgerOpen, Process: b.process, Key: order.Key})
	case target == domain.StatusCompleted:
		plan.Ledger = append(plan.Ledger, LedgerAction{
			Op:               LedgerClose,
			Process:          b.process,
			Key:              order.Key,
			ClosedAt:         now,
			BackfillOpenedAt: backfillReference(order),
		})
	case b.tracks(order.Status):
		plan.Ledger = append(plan.Ledger, LedgerAction{Op: LedgerCancel, Process: b.process, Key: order.Key})
	}
}

// AssignPartner writes the partner field. For installation orders a non-empty
// partner also marks the order processed and closes its processing interval.
// Swapping the partner on an order that is already processed with a partner
// only rewrites the field; its processing time was measured at the first
// assignment.
func (p Policy) AssignPartner(order domain.WorkOrder, partner string, now time.Time) *Plan {
	partner = strings.TrimSpace(partner)
	current := ""
	if order.Partner != nil {
		current = *order.Partner
	}
	if partner == current {
		return &Plan{}
	}
	if now.IsZero() {
		now = time.Now()
	}

	plan := &Plan{Mutations: domain.FieldMutations{}}
	if partner == "" {
		plan.Mutations[domain.FieldPartner] = nil
		return plan
	}
	plan.Mutations[domain.FieldPartner] = partner
	if p.processingFlag && !(order.Processed && current != "") {
		plan.Mutations[domain.FieldProcessed] = true
		plan.Ledger = append(plan.Ledger, LedgerAction{
			Op:               LedgerClose,
			Process:          domain.ProcessProcessing,
			Key:              order.Key,
			ClosedAt:         now,
			BackfillOpenedAt: backfillReference(order),
		})
	}
	return plan
}

// backfillReference is when the order entered its current status, the best
// available start for an interval whose open step was missed.
func backfillReference(order domain.WorkOrder) time.Time {
	if !order.StatusChangedAt.IsZero() {
		return order.StatusChangedAt
	}
	return order.CreatedAt
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}
