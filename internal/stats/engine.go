// Package stats derives dashboard series from closed ledger intervals. Nothing
// is persisted; every call rescans the store.
package stats

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// MaxDurationHours excludes intervals of 30 days or more from daily averages;
// they come from data-entry mistakes or stale backfills.
const MaxDurationHours = 720

// ClosedIntervalReader is the read side of the ledger store.
type ClosedIntervalReader interface {
	SelectClosed(ctx context.Context, process domain.TrackedProcess, filter repository.ClosedIntervalFilter) ([]domain.IntervalRecord, error)
}

// Engine computes aggregates in a fixed organizational timezone.
type Engine struct {
	reader  ClosedIntervalReader
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

// NewEngine builds an engine. A nil location means UTC.
func NewEngine(reader ClosedIntervalReader, loc *time.Location, timeout time.Duration) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{reader: reader, loc: loc, timeout: timeout, now: time.Now}
}

// WithClock returns a copy of the engine reading time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// Location returns the organizational timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// DailyDurations averages closed intervals opened during the current calendar
// month, one entry per day that has at least one valid interval, ascending.
func (e *Engine) DailyDurations(ctx context.Context, process domain.TrackedProcess) ([]domain.DailyDuration, error) {
	if !process.Valid() {
		return nil, apperrors.NewValidationError("unknown tracked process", map[string]any{"process": string(process)})
	}
	now := e.now().In(e.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, e.loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	records, err := e.selectClosed(ctx, process, repository.ClosedIntervalFilter{
		OpenedFrom: &monthStart,
		OpenedTo:   &monthEnd,
	})
	if err != nil {
		return nil, err
	}

	type bucket struct {
		day   time.Time
		sum   float64
		count int
	}
	buckets := map[time.Time]*bucket{}
	for _, record := range records {
		if record.DurationHours == nil {
			continue
		}
		hours := *record.DurationHours
		if hours <= 0 || hours >= MaxDurationHours {
			continue
		}
		opened := record.OpenedAt.In(e.loc)
		if opened.Before(monthStart) || !opened.Before(monthEnd) {
			continue
		}
		day := startOfDay(opened)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{day: day}
			buckets[day] = b
		}
		b.sum += hours
		b.count++
	}

	out := make([]domain.DailyDuration, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, domain.DailyDuration{
			Date:     b.day,
			AvgHours: roundTo(b.sum/float64(b.count), 1),
			Count:    b.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// WeeklyThresholdPercentage reports, for every Monday-start week from the
// epoch's week through the current week, the share of intervals closed within
// thresholdHours. Weeks without intervals are emitted with zeros.
func (e *Engine) WeeklyThresholdPercentage(ctx context.Context, process domain.TrackedProcess, thresholdHours float64, epoch time.Time) ([]domain.WeeklyThreshold, error) {
	if !process.Valid() {
		return nil, apperrors.NewValidationError("unknown tracked process", map[string]any{"process": string(process)})
	}
	if thresholdHours <= 0 || math.IsNaN(thresholdHours) || math.IsInf(thresholdHours, 0) {
		return nil, apperrors.NewValidationError("threshold_hours must be positive", map[string]any{"threshold_hours": thresholdHours})
	}

	first := startOfWeek(epoch.In(e.loc))
	last := startOfWeek(e.now().In(e.loc))
	if first.After(last) {
		return []domain.WeeklyThreshold{}, nil
	}

	records, err := e.selectClosed(ctx, process, repository.ClosedIntervalFilter{OpenedFrom: &epoch})
	if err != nil {
		return nil, err
	}

	type tally struct{ within, total int }
	tallies := map[time.Time]*tally{}
	threshold := time.Duration(thresholdHours * float64(time.Hour))
	for _, record := range records {
		if record.ClosedAt == nil || record.OpenedAt.Before(epoch) {
			continue
		}
		week := startOfWeek(record.OpenedAt.In(e.loc))
		if week.After(last) {
			continue
		}
		t, ok := tallies[week]
		if !ok {
			t = &tally{}
			tallies[week] = t
		}
		t.total++
		if record.ClosedAt.Sub(record.OpenedAt) <= threshold {
			t.within++
		}
	}

	var out []domain.WeeklyThreshold
	for week := first; !week.After(last); week = week.AddDate(0, 0, 7) {
		entry := domain.WeeklyThreshold{WeekStart: week}
		if t, ok := tallies[week]; ok && t.total > 0 {
			entry.TotalCount = t.total
			entry.Percentage = int(math.Round(float64(t.within) / float64(t.total) * 100))
		}
		out = append(out, entry)
	}
	return out, nil
}

func (e *Engine) selectClosed(ctx context.Context, process domain.TrackedProcess, filter repository.ClosedIntervalFilter) ([]domain.IntervalRecord, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	records, err := e.reader.SelectClosed(ctx, process, filter)
	if err != nil {
		return nil, apperrors.WrapStoreError("ledger store", "interval", err)
	}
	return records, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns Monday 00:00 of t's ISO week in t's location.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
