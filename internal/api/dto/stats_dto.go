package dto

// DailyDurationResponse is one day of the current-month series.
type DailyDurationResponse struct {
	Date     string  `json:"date"`
	AvgHours float64 `json:"avg_hours"`
	Count    int     `json:"count"`
}

// WeeklyThresholdResponse is one week of the within-threshold series.
type WeeklyThresholdResponse struct {
	WeekStart  string `json:"week_start"`
	Percentage int    `json:"percentage"`
	TotalCount int    `json:"total_count"`
}

// EnsureOpenRequest payload.
type EnsureOpenRequest struct {
	Keys []string `json:"keys"`
}

// EnsureOpenResponse lists the keys that received a new interval.
type EnsureOpenResponse struct {
	Inserted []string `json:"inserted"`
}
