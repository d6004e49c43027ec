package domain

import "time"

// TrackedProcess is one category of timed workflow with its own ledger table.
type TrackedProcess string

const (
	ProcessProcessing       TrackedProcess = "tramitacion"
	ProcessCollection       TrackedProcess = "recogida"
	ProcessAdvisory         TrackedProcess = "asesoramiento"
	ProcessRemoteResolution TrackedProcess = "resolucion_remota"
)

// TrackedProcesses lists every process in a stable order.
var TrackedProcesses = []TrackedProcess{
	ProcessProcessing,
	ProcessCollection,
	ProcessAdvisory,
	ProcessRemoteResolution,
}

// Valid reports whether the process is known.
func (p TrackedProcess) Valid() bool {
	for _, candidate := range TrackedProcesses {
		if candidate == p {
			return true
		}
	}
	return false
}

// TableName returns the ledger table backing the process.
func (p TrackedProcess) TableName() string {
	return "ledger_" + string(p)
}

// IntervalRecord is one open-or-closed timing window for a business key.
type IntervalRecord struct {
	ID            int64
	Key           string
	OpenedAt      time.Time
	ClosedAt      *time.Time
	DurationHours *float64
}

// Open reports whether the interval has not been closed yet.
func (r IntervalRecord) Open() bool {
	return r.ClosedAt == nil
}

// DailyDuration is one day of the current-month duration series.
type DailyDuration struct {
	Date     time.Time `json:"date"`
	AvgHours float64   `json:"avg_hours"`
	Count    int       `json:"count"`
}

// WeeklyThreshold is one ISO week of the within-threshold series.
type WeeklyThreshold struct {
	WeekStart  time.Time `json:"week_start"`
	Percentage int       `json:"percentage"`
	TotalCount int       `json:"total_count"`
}
