package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/stats"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// StatsHandler serves the ledger aggregations.
type StatsHandler struct {
	engine         *stats.Engine
	thresholdHours float64
	epoch          time.Time
}

// NewStatsHandler constructs handler. thresholdHours and epoch are the
// defaults when the query does not override them.
func NewStatsHandler(engine *stats.Engine, thresholdHours float64, epoch time.Time) *StatsHandler {
	return &StatsHandler{engine: engine, thresholdHours: thresholdHours, epoch: epoch}
}

// Daily GET /stats/:process/daily.
func (h *StatsHandler) Daily(c *fiber.Ctx) error {
	series, err := h.engine.DailyDurations(c.UserContext(), domain.TrackedProcess(c.Params("process")))
	if err != nil {
		return err
	}
	items := make([]dto.DailyDurationResponse, 0, len(series))
	for _, day := range series {
		items = append(items, dto.DailyDurationResponse{
			Date:     day.Date.Format(dateLayout),
			AvgHours: day.AvgHours,
			Count:    day.Count,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Weekly GET /stats/:process/weekly?threshold_hours=&epoch=.
func (h *StatsHandler) Weekly(c *fiber.Ctx) error {
	threshold := h.thresholdHours
	if raw := c.Query("threshold_hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid threshold_hours", map[string]any{"threshold_hours": raw})
		}
		threshold = parsed
	}
	epoch := h.epoch
	if raw := c.Query("epoch"); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, h.engine.Location())
		if err != nil {
			return apperrors.NewValidationError("invalid epoch, expected YYYY-MM-DD", map[string]any{"epoch": raw})
		}
		epoch = parsed
	}

	series, err := h.engine.WeeklyThresholdPercentage(c.UserContext(), domain.TrackedProcess(c.Params("process")), threshold, epoch)
	if err != nil {
		return err
	}
	items := make([]dto.WeeklyThresholdResponse, 0, len(series))
	for _, week := range series {
		items = append(items, dto.WeeklyThresholdResponse{
			WeekStart:  week.WeekStart.Format(dateLayout),
			Percentage: week.Percentage,
			TotalCount: week.TotalCount,
		})
	}
	return c.JSON(fiber.Map{"data": items, "threshold_hours": threshold})
}
