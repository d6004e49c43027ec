package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/ledger"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const maxEnsureOpenKeys = 1000

// LedgerHandler exposes bulk interval maintenance.
type LedgerHandler struct {
	tracker *ledger.Tracker
}

// NewLedgerHandler constructs handler.
func NewLedgerHandler(tracker *ledger.Tracker) *LedgerHandler {
	return &LedgerHandler{tracker: tracker}
}

// EnsureOpen POST /ledger/:process/ensure-open.
func (h *LedgerHandler) EnsureOpen(c *fiber.Ctx) error {
	var req dto.EnsureOpenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Keys) > maxEnsureOpenKeys {
		return apperrors.NewValidationError("too many keys", map[string]any{"max": maxEnsureOpenKeys})
	}
	inserted, err := h.tracker.EnsureOpen(c.UserContext(), domain.TrackedProcess(c.Params("process")), req.Keys)
	if err != nil {
		return err
	}
	if inserted == nil {
		inserted = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.EnsureOpenResponse{Inserted: inserted}})
}
