package model

import "time"

// DimensionCount is one grouped value within a breakdown, e.g.
// {Value: "Chrome", Count: 42}.
type DimensionCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// DayCount is one bucket of the daily click series. Date is the UTC
// calendar day in YYYY-MM-DD form.
type DayCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// StatsSnapshot is the computed analytics view for one link. It is never
// persisted; every query recomputes it from the raw event log.
type StatsSnapshot struct {
	Code           string           `json:"code"`
	TargetURL      string           `json:"target_url"`
	Title          *string          `json:"title,omitempty"`
	TotalClicks    int64            `json:"total_clicks"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt *time.Time       `json:"last_accessed_at,omitempty"`
	Browsers       []DimensionCount `json:"browsers"`
	Systems        []DimensionCount `json:"systems"`
	Devices        []DimensionCount `json:"devices"`
	Referrers      []DimensionCount `json:"referrers"`
	Series         []DayCount       `json:"chart_data"`
}
