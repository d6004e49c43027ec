package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/ledger"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

var madrid = time.FixedZone("CET", 3600)

func hoursPtr(h float64) *float64 { return &h }

func seedDuration(store *repository.MemoryIntervalRepository, process domain.TrackedProcess, key string, opened time.Time, hours float64) {
	closed := opened.Add(time.Duration(hours * float64(time.Hour)))
	store.Seed(process, domain.IntervalRecord{Key: key, OpenedAt: opened, ClosedAt: &closed, DurationHours: hoursPtr(hours)})
}

func TestDailyDurationsDiscardsAnomalies(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, madrid)
	day := time.Date(2026, 3, 5, 8, 0, 0, 0, madrid)
	store := repository.NewMemoryIntervalRepository()
	for i, h := range []float64{5, 1000, -3, 12} {
		seedDuration(store, domain.ProcessCollection, "K"+string(rune('a'+i)), day, h)
	}

	engine := NewEngine(store, madrid, time.Second).WithClock(func() time.Time { return now })
	series, err := engine.DailyDurations(context.Background(), domain.ProcessCollection)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, madrid), series[0].Date)
	assert.Equal(t, 8.5, series[0].AvgHours)
	assert.Equal(t, 2, series[0].Count)
}

func TestDailyDurationsRestrictsToCurrentMonthAndOrders(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, madrid)
	store := repository.NewMemoryIntervalRepository()
	p := domain.ProcessAdvisory
	seedDuration(store, p, "feb", time.Date(2026, 2, 27, 10, 0, 0, 0, madrid), 4)
	seedDuration(store, p, "d9a", time.Date(2026, 3, 9, 10, 0, 0, 0, madrid), 1)
	seedDuration(store, p, "d9b", time.Date(2026, 3, 9, 11, 0, 0, 0, madrid), 2)
	seedDuration(store, p, "d2", time.Date(2026, 3, 2, 10, 0, 0, 0, madrid), 3.33)
	// 23:30 UTC on the last day of February is already March 1st in the org zone.
	seedDuration(store, p, "edge", time.Date(2026, 2, 28, 23, 30, 0, 0, time.UTC), 6)
	seedDuration(store, p, "apr", time.Date(2026, 4, 1, 0, 0, 0, 0, madrid), 6)
	store.Seed(p, domain.IntervalRecord{Key: "open", OpenedAt: time.Date(2026, 3, 9, 10, 0, 0, 0, madrid)})
	seedDuration(store, domain.ProcessCollection, "other", time.Date(2026, 3, 9, 10, 0, 0, 0, madrid), 50)

	engine := NewEngine(store, madrid, 0).WithClock(func() time.Time { return now })
	series, err := engine.DailyDurations(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, madrid), series[0].Date)
	assert.Equal(t, 6.0, series[0].AvgHours)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, madrid), series[1].Date)
	assert.Equal(t, 3.3, series[1].AvgHours)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, madrid), series[2].Date)
	assert.Equal(t, 1.5, series[2].AvgHours)
	assert.Equal(t, 2, series[2].Count)
}

func TestDailyDurationsEndToEnd(t *testing.T) {
	store := repository.NewMemoryIntervalRepository()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, madrid)
	clock := func() time.Time { return now }
	tracker := ledger.NewTracker(store, zap.NewNop(), time.Second, ledger.WithClock(clock))
	engine := NewEngine(store, madrid, time.Second).WithClock(clock)
	ctx := context.Background()
	p := domain.ProcessRemoteResolution

	_, err := tracker.Open(ctx, p, "WO-1")
	require.NoError(t, err)
	_, err = tracker.Close(ctx, p, "WO-1", ledger.CloseRequest{ClosedAt: now.Add(5 * time.Hour)})
	require.NoError(t, err)

	series, err := engine.DailyDurations(ctx, p)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 5.0, series[0].AvgHours)
	assert.Equal(t, 1, series[0].Count)

	_, err = tracker.Open(ctx, p, "WO-2")
	require.NoError(t, err)
	_, err = tracker.Close(ctx, p, "WO-2", ledger.CloseRequest{ClosedAt: now.Add(18 * time.Hour)})
	require.NoError(t, err)

	series, err = engine.DailyDurations(ctx, p)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 11.5, series[0].AvgHours)
	assert.Equal(t, 2, series[0].Count)
}

func TestWeeklyThresholdPercentageFillsGaps(t *testing.T) {
	// Monday 2 March 2026 is the epoch week; "now" falls in the week of 16 March.
	epoch := time.Date(2026, 3, 4, 0, 0, 0, 0, madrid)
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, madrid)
	store := repository.NewMemoryIntervalRepository()
	p := domain.ProcessCollection
	seedDuration(store, p, "before", time.Date(2026, 3, 3, 9, 0, 0, 0, madrid), 1)
	seedDuration(store, p, "w1a", time.Date(2026, 3, 4, 9, 0, 0, 0, madrid), 10)
	seedDuration(store, p, "w1b", time.Date(2026, 3, 6, 9, 0, 0, 0, madrid), 48)
	seedDuration(store, p, "w1c", time.Date(2026, 3, 8, 23, 0, 0, 0, madrid), 49)
	seedDuration(store, p, "w3", time.Date(2026, 3, 16, 0, 0, 0, 0, madrid), 72)
	store.Seed(p, domain.IntervalRecord{Key: "open", OpenedAt: time.Date(2026, 3, 17, 0, 0, 0, 0, madrid)})

	engine := NewEngine(store, madrid, time.Second).WithClock(func() time.Time { return now })
	series, err := engine.WeeklyThresholdPercentage(context.Background(), p, 48, epoch)
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, madrid), series[0].WeekStart)
	assert.Equal(t, 3, series[0].TotalCount)
	assert.Equal(t, 67, series[0].Percentage)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, madrid), series[1].WeekStart)
	assert.Equal(t, 0, series[1].TotalCount)
	assert.Equal(t, 0, series[1].Percentage)

	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, madrid), series[2].WeekStart)
	assert.Equal(t, 1, series[2].TotalCount)
	assert.Equal(t, 0, series[2].Percentage)
}

func TestWeeklyThresholdPercentageEpochInFuture(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, madrid)
	engine := NewEngine(repository.NewMemoryIntervalRepository(), madrid, 0).WithClock(func() time.Time { return now })

	series, err := engine.WeeklyThresholdPercentage(context.Background(), domain.ProcessAdvisory, 24, now.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestWeeklyThresholdPercentageValidation(t *testing.T) {
	engine := NewEngine(repository.NewMemoryIntervalRepository(), nil, 0)

	_, err := engine.WeeklyThresholdPercentage(context.Background(), domain.ProcessAdvisory, 0, time.Now())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = engine.DailyDurations(context.Background(), domain.TrackedProcess("nope"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

type brokenReader struct{}

func (brokenReader) SelectClosed(context.Context, domain.TrackedProcess, repository.ClosedIntervalFilter) ([]domain.IntervalRecord, error) {
	return nil, errors.New("i/o timeout")
}

func TestReaderFailureIsRemoteUnavailable(t *testing.T) {
	engine := NewEngine(brokenReader{}, madrid, 0)
	_, err := engine.DailyDurations(context.Background(), domain.ProcessCollection)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeRemoteUnavailable))
}

func TestStartOfWeek(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 22, 0, 0, 0, madrid)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, madrid), startOfWeek(sunday))
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, madrid)
	assert.Equal(t, monday, startOfWeek(monday))
}
