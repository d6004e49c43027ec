package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// WorkOrdersHandler exposes the status gate and partner assignment.
type WorkOrdersHandler struct {
	transitions *service.TransitionService
}

// NewWorkOrdersHandler constructs handler.
func NewWorkOrdersHandler(transitions *service.TransitionService) *WorkOrdersHandler {
	return &WorkOrdersHandler{transitions: transitions}
}

// GetWorkOrder GET /work-orders/:id.
func (h *WorkOrdersHandler) GetWorkOrder(c *fiber.Ctx) error {
	order, err := h.transitions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workOrderResponse(order)})
}

// ListHistory GET /work-orders/:id/history.
func (h *WorkOrdersHandler) ListHistory(c *fiber.Ctx) error {
	entries, err := h.transitions.History(c.UserContext(), c.Params("id"), parseIntQuery(c, "limit", 50))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.HistoryEntryResponse{
			ID:          entry.ID,
			ChangedByID: entry.ChangedByID,
			ChangeType:  string(entry.ChangeType),
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// DecideTransition GET /work-orders/:id/transitions?target=.
func (h *WorkOrdersHandler) DecideTransition(c *fiber.Ctx) error {
	decision, err := h.transitions.Decide(c.UserContext(), c.Params("id"), domain.WorkOrderStatus(c.Query("target")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DecisionResponse{
		Pending: decision.Pending,
		Options: decision.Options,
	}})
}

// CommitTransition POST /work-orders/:id/transitions.
func (h *WorkOrdersHandler) CommitTransition(c *fiber.Ctx) error {
	operator, err := currentOperator(c)
	if err != nil {
		return err
	}
	var req dto.CommitTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.transitions.Commit(c.UserContext(), operator, c.Params("id"), service.CommitRequest{
		From:        req.From,
		Target:      req.Target,
		Appointment: req.Appointment,
		Value:       req.Value,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(result)})
}

// AssignPartner PUT /work-orders/:id/partner.
func (h *WorkOrdersHandler) AssignPartner(c *fiber.Ctx) error {
	operator, err := currentOperator(c)
	if err != nil {
		return err
	}
	var req dto.AssignPartnerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.transitions.AssignPartner(c.UserContext(), operator, c.Params("id"), req.Partner)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(result)})
}

func currentOperator(c *fiber.Ctx) (domain.Operator, error) {
	operator, ok := auth.OperatorFromContext(c)
	if !ok {
		return domain.Operator{}, apperrors.NewUnauthorized("authentication required")
	}
	return operator, nil
}

func workOrderResponse(order *domain.WorkOrder) dto.WorkOrderResponse {
	resp := dto.WorkOrderResponse{
		ID:              order.ID,
		Key:             order.Key,
		Variant:         order.Variant,
		Status:          order.Status,
		Appointment:     order.Appointment,
		Resolution:      order.Resolution,
		TechnicalReason: order.TechnicalReason,
		Budget:          order.Budget,
		Processed:       order.Processed,
		Partner:         order.Partner,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if !order.StatusChangedAt.IsZero() {
		changed := order.StatusChangedAt
		resp.StatusChangedAt = &changed
	}
	return resp
}

func transitionResponse(result *service.TransitionResult) dto.TransitionResponse {
	warnings := make([]dto.LedgerWarningResponse, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, dto.LedgerWarningResponse{
			Op:      string(w.Op),
			Process: string(w.Process),
			Key:     w.Key,
			Code:    w.Code,
			Message: w.Message,
		})
	}
	return dto.TransitionResponse{
		WorkOrder: workOrderResponse(result.WorkOrder),
		Applied:   result.Applied,
		Warnings:  warnings,
	}
}
