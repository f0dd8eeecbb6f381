package analytics

import (
	"time"

	"github.com/google/uuid"

	"field-ticket-service/internal/status"
)

// Summary is the raw aggregate a Source returns for one window.
type Summary struct {
	Total              int64
	ByStatus           status.Counts
	ByPriority         map[status.Priority]int64
	Completed          int64
	AvgResolutionHours float64
	FirstVisitFixes    int64
	CompletedOnTime    int64
	CompletedWithDue   int64
	AvgVisits          float64
	Overdue            int64
}

type Overview struct {
	Total      int64                     `json:"total"`
	Active     int64                     `json:"active"`
	Completed  int64                     `json:"completed"`
	Overdue    int64                     `json:"overdue"`
	ByStatus   map[string]int64          `json:"by_status"`
	ByPriority map[status.Priority]int64 `json:"by_priority"`
}

type TrendPoint struct {
	Bucket    time.Time `json:"bucket"`
	Created   int64     `json:"created"`
	Completed int64     `json:"completed"`
}

type Trends struct {
	Period Period       `json:"period"`
	Points []TrendPoint `json:"points"`
}

type Performance struct {
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	FirstVisitFixRate  float64 `json:"first_visit_fix_rate"`
	OnTimeRate         float64 `json:"on_time_rate"`
	AvgVisits          float64 `json:"avg_visits"`
	CompletionRate     float64 `json:"completion_rate"`
}

type EngineerStat struct {
	EngineerID         uuid.UUID `json:"engineer_id"`
	Name               string    `json:"name"`
	Assigned           int64     `json:"assigned"`
	Active             int64     `json:"active"`
	Completed          int64     `json:"completed"`
	AvgResolutionHours float64   `json:"avg_resolution_hours"`
}

type PartUsage struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Tickets  int64  `json:"tickets"`
}

type ComparisonMetric struct {
	Current       float64  `json:"current"`
	Previous      float64  `json:"previous"`
	ChangePercent *float64 `json:"change_percent"`
}

type Comparison struct {
	Current  Filter                      `json:"current"`
	Previous Filter                      `json:"previous"`
	Metrics  map[string]ComparisonMetric `json:"metrics"`
}

// Dashboard is the full batch the analytics screen renders at once.
type Dashboard struct {
	Filter      Filter         `json:"filter"`
	Overview    Overview       `json:"overview"`
	Trends      Trends         `json:"trends"`
	Performance Performance    `json:"performance"`
	Engineers   []EngineerStat `json:"engineers"`
	Parts       []PartUsage    `json:"parts"`
	Comparison  Comparison     `json:"comparison"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func overviewFrom(s Summary) Overview {
	byStatus := make(map[string]int64, len(s.ByStatus))
	for st, n := range s.ByStatus {
		byStatus[string(st)] = n
	}
	byPriority := s.ByPriority
	if byPriority == nil {
		byPriority = map[status.Priority]int64{}
	}
	return Overview{
		Total:      s.Total,
		Active:     s.ByStatus.Active(),
		Completed:  s.Completed,
		Overdue:    s.Overdue,
		ByStatus:   byStatus,
		ByPriority: byPriority,
	}
}

func performanceFrom(s Summary) Performance {
	return Performance{
		AvgResolutionHours: s.AvgResolutionHours,
		FirstVisitFixRate:  ratio(s.FirstVisitFixes, s.Completed),
		OnTimeRate:         ratio(s.CompletedOnTime, s.CompletedWithDue),
		AvgVisits:          s.AvgVisits,
		CompletionRate:     ratio(s.Completed, s.Total),
	}
}

func compare(current, previous float64) ComparisonMetric {
	m := ComparisonMetric{Current: current, Previous: previous}
	if previous != 0 {
		change := (current - previous) / previous * 100
		m.ChangePercent = &change
	}
	return m
}

func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
