package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/gate"
	"github.com/spec-kit/workorder-service/internal/ledger"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const primaryStore = "work_orders"

// IntervalTracker is the ledger as seen by the transition workflow.
type IntervalTracker interface {
	Open(ctx context.Context, process domain.TrackedProcess, key string) (bool, error)
	Close(ctx context.Context, process domain.TrackedProcess, key string, req ledger.CloseRequest) (*ledger.CloseResult, error)
	Cancel(ctx context.Context, process domain.TrackedProcess, key string) (bool, error)
}

// OptionSource provides catalog options by kind.
type OptionSource interface {
	Options(ctx context.Context, kind string) ([]string, error)
}

// TransitionService coordinates status changes and partner assignment:
// gate decision, primary write, history, events and ledger calls.
type TransitionService struct {
	orders     repository.WorkOrderRepository
	history    repository.WorkOrderHistoryRepository
	catalog    OptionSource
	tracker    IntervalTracker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

// TransitionDependencies bundles collaborators for the transition service.
type TransitionDependencies struct {
	WorkOrderRepo repository.WorkOrderRepository
	HistoryRepo   repository.WorkOrderHistoryRepository
	Catalog       OptionSource
	Tracker       IntervalTracker
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	// CallTimeout bounds each primary store call.
	CallTimeout time.Duration
	Now         func() time.Time
}

// TransitionDecision is the answer to a requested status change.
type TransitionDecision struct {
	Pending gate.PendingTransition
	// Options lists the admissible values when input is required and the
	// input is chosen from a list (reasons or budget catalog).
	Options []string
}

// CommitRequest is the confirmed transition plus its supplemental value.
type CommitRequest struct {
	From        domain.WorkOrderStatus
	Target      domain.WorkOrderStatus
	Appointment *time.Time
	Value       string
}

// LedgerWarning reports a ledger call that failed after the primary write.
type LedgerWarning struct {
	Op      gate.LedgerOp         `json:"op"`
	Process domain.TrackedProcess `json:"process"`
	Key     string                `json:"key"`
	Code    string                `json:"code"`
	Message string                `json:"message"`
}

// TransitionResult is the outcome of a commit or partner assignment.
type TransitionResult struct {
	WorkOrder *domain.WorkOrder
	// Applied is false when the request resolved to a no-op.
	Applied  bool
	Warnings []LedgerWarning
}

// NewTransitionService constructs the service.
func NewTransitionService(deps TransitionDependencies) *TransitionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TransitionService{
		orders:     deps.WorkOrderRepo,
		history:    deps.HistoryRepo,
		catalog:    deps.Catalog,
		tracker:    deps.Tracker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		timeout:    deps.CallTimeout,
		now:        now,
	}
}

// Get loads a work order.
func (s *TransitionService) Get(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return s.load(ctx, id)
}

// History lists the most recent audit entries of a work order.
func (s *TransitionService) History(ctx context.Context, id string, limit int) ([]domain.WorkOrderHistory, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	entries, err := s.history.ListByWorkOrder(callCtx, id, limit)
	if err != nil {
		return nil, apperrors.NewRemoteUnavailable("work_order_history", err)
	}
	return entries, nil
}

// Decide evaluates a requested status change without writing anything.
func (s *TransitionService) Decide(ctx context.Context, id string, target domain.WorkOrderStatus) (*TransitionDecision, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := gate.PolicyFor(order.Variant)
	if err != nil {
		return nil, err
	}
	pending, err := policy.Begin(*order, target)
	if err != nil {
		return nil, err
	}

	decision := &TransitionDecision{Pending: pending}
	if pending.Requirement == nil {
		return decision, nil
	}
	switch pending.Requirement.Kind {
	case gate.InputResolution:
		decision.Options = pending.Requirement.ReasonSet.Reasons()
	case gate.InputBudget:
		options, err := s.budgetOptions(ctx)
		if err != nil {
			return nil, err
		}
		decision.Options = options
	}
	return decision, nil
}

// Commit applies a confirmed transition. The primary write happens first; if
// it fails nothing else is attempted. Ledger failures after a successful
// primary write are reported as warnings and never undo the transition.
func (s *TransitionService) Commit(ctx context.Context, actor domain.Operator, id string, req CommitRequest) (*TransitionResult, error) {
	if req.From == "" {
		return nil, apperrors.NewValidationError("from status required", nil)
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := gate.PolicyFor(order.Variant)
	if err != nil {
		return nil, err
	}

	in := gate.CommitInput{
		Pending: gate.PendingTransition{
			WorkOrderID: id,
			From:        req.From,
			Target:      req.Target,
		},
		Supplement: gate.Supplement{Appointment: req.Appointment, Value: req.Value},
		Now:        s.now(),
	}
	if d := policy.Decide(order.Status, req.Target); d.RequiresInput() && d.Requirement.Kind == gate.InputBudget && req.From == order.Status {
		options, err := s.budgetOptions(ctx)
		if err != nil {
			return nil, err
		}
		in.BudgetOptions = options
	}

	plan, err := policy.Commit(*order, in)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return &TransitionResult{WorkOrder: order}, nil
	}

	updated, err := s.write(ctx, order, plan)
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, actor, order, domain.ChangeTypeStatus,
		map[string]any{string(domain.FieldStatus): order.Status},
		mutationValues(plan.Mutations))
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderStatusChanged,
		WorkOrderID: order.ID,
		Actor:       operatorActor(actor),
		Payload: events.StatusChangedPayload{
			Key:       order.Key,
			Variant:   order.Variant,
			OldStatus: order.Status,
			NewStatus: updated.Status,
		},
	})

	return &TransitionResult{
		WorkOrder: updated,
		Applied:   true,
		Warnings:  s.applyLedger(ctx, actor, order.ID, plan.Ledger),
	}, nil
}

// AssignPartner sets or clears the partner of a work order.
func (s *TransitionService) AssignPartner(ctx context.Context, actor domain.Operator, id, partner string) (*TransitionResult, error) {
	if len(partner) > 255 {
		return nil, apperrors.NewValidationError("partner too long", map[string]any{"max": 255})
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := gate.PolicyFor(order.Variant)
	if err != nil {
		return nil, err
	}
	plan := policy.AssignPartner(*order, partner, s.now())
	if plan.Empty() {
		return &TransitionResult{WorkOrder: order}, nil
	}

	updated, err := s.write(ctx, order, plan)
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, actor, order, domain.ChangeTypePartner,
		map[string]any{string(domain.FieldPartner): order.Partner},
		mutationValues(plan.Mutations))
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderPartnerAssigned,
		WorkOrderID: order.ID,
		Actor:       operatorActor(actor),
		Payload: events.PartnerAssignedPayload{
			Key:        order.Key,
			OldPartner: order.Partner,
			NewPartner: updated.Partner,
		},
	})

	return &TransitionResult{
		WorkOrder: updated,
		Applied:   true,
		Warnings:  s.applyLedger(ctx, actor, order.ID, plan.Ledger),
	}, nil
}

func (s *TransitionService) load(ctx context.Context, id string) (*domain.WorkOrder, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("work order id required", nil)
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	order, err := s.orders.GetByID(callCtx, id)
	if err != nil {
		return nil, apperrors.WrapStoreError(primaryStore, "work order", err)
	}
	return order, nil
}

func (s *TransitionService) write(ctx context.Context, order *domain.WorkOrder, plan *gate.Plan) (*domain.WorkOrder, error) {
	if len(plan.Mutations) == 0 {
		return order, nil
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if err := s.orders.UpdateFields(callCtx, order.ID, plan.Mutations); err != nil {
		s.logger.Warn("primary write failed",
			zap.String("work_order_id", order.ID),
			zap.Error(err))
		return nil, apperrors.WrapStoreError(primaryStore, "work order", err)
	}
	updated := order.Apply(plan.Mutations)
	return &updated, nil
}

func (s *TransitionService) budgetOptions(ctx context.Context) ([]string, error) {
	if s.catalog == nil {
		return nil, apperrors.NewRemoteUnavailable("option_catalog", nil)
	}
	return s.catalog.Options(ctx, CatalogBudget)
}

// applyLedger issues each ledger call in order. Every call is attempted even
// if an earlier one failed.
func (s *TransitionService) applyLedger(ctx context.Context, actor domain.Operator, workOrderID string, actions []gate.LedgerAction) []LedgerWarning {
	var warnings []LedgerWarning
	for _, action := range actions {
		err := s.runLedgerAction(ctx, action)
		if err == nil {
			continue
		}
		domainErr := apperrors.ToDomainError(err)
		warnings = append(warnings, LedgerWarning{
			Op:      action.Op,
			Process: action.Process,
			Key:     action.Key,
			Code:    domainErr.Code,
			Message: domainErr.Error(),
		})
		s.logger.Warn("ledger call failed after primary write",
			zap.String("work_order_id", workOrderID),
			zap.String("process", string(action.Process)),
			zap.String("op", string(action.Op)),
			zap.String("key", action.Key),
			zap.Error(err))
		s.publishEvent(ctx, events.Event{
			Type:        events.EventLedgerWriteFailed,
			WorkOrderID: workOrderID,
			Actor:       operatorActor(actor),
			Payload:     ledgerFailurePayload(action, err),
		})
	}
	return warnings
}

func (s *TransitionService) runLedgerAction(ctx context.Context, action gate.LedgerAction) error {
	if s.tracker == nil {
		return apperrors.NewRemoteUnavailable("ledger", nil)
	}
	var err error
	switch action.Op {
	case gate.LedgerOpen:
		_, err = s.tracker.Open(ctx, action.Process, action.Key)
	case gate.LedgerClose:
		_, err = s.tracker.Close(ctx, action.Process, action.Key, ledger.CloseRequest{
			ClosedAt:         action.ClosedAt,
			BackfillOpenedAt: action.BackfillOpenedAt,
		})
	case gate.LedgerCancel:
		_, err = s.tracker.Cancel(ctx, action.Process, action.Key)
	}
	return err
}

func (s *TransitionService) recordHistory(ctx context.Context, actor domain.Operator, order *domain.WorkOrder, changeType domain.WorkOrderChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.WorkOrderHistory{
		WorkOrderID: order.ID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if actor.ID != "" {
		id := actor.ID
		entry.ChangedByID = &id
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if err := s.history.Create(callCtx, entry); err != nil {
		s.logger.Warn("history write failed",
			zap.String("work_order_id", order.ID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}

func (s *TransitionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (s *TransitionService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func mutationValues(m domain.FieldMutations) map[string]any {
	out := make(map[string]any, len(m))
	for field, value := range m {
		out[string(field)] = value
	}
	return out
}

func ledgerFailurePayload(action gate.LedgerAction, err error) events.LedgerWriteFailedPayload {
	payload := events.LedgerWriteFailedPayload{
		Op:      action.Op,
		Process: action.Process,
		Key:     action.Key,
		Error:   err.Error(),
	}
	if !action.ClosedAt.IsZero() {
		closedAt := action.ClosedAt
		payload.ClosedAt = &closedAt
	}
	if !action.BackfillOpenedAt.IsZero() {
		opened := action.BackfillOpenedAt
		payload.BackfillOpenedAt = &opened
	}
	return payload
}

func operatorActor(actor domain.Operator) events.Actor {
	return events.Actor{OperatorID: actor.ID, Role: actor.Role}
}
