package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/analytics"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/status"
)

// AnalyticsRepository answers the aggregate queries for the analytics screen.
type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

type groupCount struct {
	Key   string
	Count int64
}

type completionRow struct {
	Completed          int64
	AvgResolutionHours float64
	FirstVisitFixes    int64
	CompletedOnTime    int64
	CompletedWithDue   int64
	AvgVisits          float64
}

func (r *AnalyticsRepository) Summary(ctx context.Context, f analytics.Filter) (analytics.Summary, error) {
	db := conn(ctx, r.db)
	created := db.Model(&model.Ticket{}).Where("created_at >= ? AND created_at < ?", f.From, f.To)

	summary := analytics.Summary{
		ByStatus:   status.Counts{},
		ByPriority: map[status.Priority]int64{},
	}

	var byStatus []groupCount
	if err := created.Session(&gorm.Session{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return analytics.Summary{}, err
	}
	for _, row := range byStatus {
		if err := summary.ByStatus.Add(row.Key, row.Count); err != nil {
			return analytics.Summary{}, err
		}
	}
	summary.Total = summary.ByStatus.Total()

	var byPriority []groupCount
	if err := created.Session(&gorm.Session{}).
		Select("priority AS key, COUNT(*) AS count").
		Group("priority").
		Scan(&byPriority).Error; err != nil {
		return analytics.Summary{}, err
	}
	for _, row := range byPriority {
		summary.ByPriority[status.Priority(row.Key)] = row.Count
	}

	var completion completionRow
	if err := db.Model(&model.Ticket{}).
		Where("completed_at >= ? AND completed_at < ?", f.From, f.To).
		Select(`COUNT(*) AS completed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - created_at)) / 3600), 0) AS avg_resolution_hours,
			COUNT(*) FILTER (WHERE current_visit = 1) AS first_visit_fixes,
			COUNT(*) FILTER (WHERE deadline IS NOT NULL AND completed_at <= deadline) AS completed_on_time,
			COUNT(*) FILTER (WHERE deadline IS NOT NULL) AS completed_with_due,
			COALESCE(AVG(current_visit), 0) AS avg_visits`).
		Scan(&completion).Error; err != nil {
		return analytics.Summary{}, err
	}
	summary.Completed = completion.Completed
	summary.AvgResolutionHours = completion.AvgResolutionHours
	summary.FirstVisitFixes = completion.FirstVisitFixes
	summary.CompletedOnTime = completion.CompletedOnTime
	summary.CompletedWithDue = completion.CompletedWithDue
	summary.AvgVisits = completion.AvgVisits

	if err := created.Session(&gorm.Session{}).
		Where("deadline IS NOT NULL AND deadline < ? AND status NOT IN ?", f.To, []status.Status{status.Finish, status.Closed}).
		Count(&summary.Overdue).Error; err != nil {
		return analytics.Summary{}, err
	}

	return summary, nil
}

type bucketCount struct {
	Bucket time.Time
	Count  int64
}

func (r *AnalyticsRepository) Trend(ctx context.Context, f analytics.Filter) ([]analytics.TrendPoint, error) {
	db := conn(ctx, r.db)
	unit := string(f.Period)

	var created []bucketCount
	if err := db.Model(&model.Ticket{}).
		Select("date_trunc(?, created_at) AS bucket, COUNT(*) AS count", unit).
		Where("created_at >= ? AND created_at < ?", f.From, f.To).
		Group("bucket").
		Scan(&created).Error; err != nil {
		return nil, err
	}

	var completed []bucketCount
	if err := db.Model(&model.Ticket{}).
		Select("date_trunc(?, completed_at) AS bucket, COUNT(*) AS count", unit).
		Where("completed_at >= ? AND completed_at < ?", f.From, f.To).
		Group("bucket").
		Scan(&completed).Error; err != nil {
		return nil, err
	}

	points := map[time.Time]*analytics.TrendPoint{}
	point := func(bucket time.Time) *analytics.TrendPoint {
		bucket = bucket.UTC()
		if p, ok := points[bucket]; ok {
			return p
		}
		p := &analytics.TrendPoint{Bucket: bucket}
		points[bucket] = p
		return p
	}
	for _, row := range created {
		point(row.Bucket).Created = row.Count
	}
	for _, row := range completed {
		point(row.Bucket).Completed = row.Count
	}

	out := make([]analytics.TrendPoint, 0, len(points))
	for _, p := range points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out, nil
}

type engineerRow struct {
	EngineerID         uuid.UUID
	Name               string
	Assigned           int64
	Active             int64
	Completed          int64
	AvgResolutionHours float64
}

func (r *AnalyticsRepository) Engineers(ctx context.Context, f analytics.Filter) ([]analytics.EngineerStat, error) {
	var rows []engineerRow
	err := conn(ctx, r.db).
		Table("users u").
		Select(`u.id AS engineer_id, u.name AS name,
			COUNT(t.id) AS assigned,
			COUNT(t.id) FILTER (WHERE t.status <> ?) AS active,
			COUNT(t.id) FILTER (WHERE t.completed_at IS NOT NULL) AS completed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (t.completed_at - t.created_at)) / 3600)
				FILTER (WHERE t.completed_at IS NOT NULL), 0) AS avg_resolution_hours`, status.Closed).
		Joins(`LEFT JOIN tickets t ON t.assigned_to = u.id AND t.deleted_at IS NULL
			AND t.created_at >= ? AND t.created_at < ?`, f.From, f.To).
		Where("u.role = ?", model.UserRoleEngineer).
		Group("u.id, u.name").
		Order("completed DESC, u.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make([]analytics.EngineerStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, analytics.EngineerStat(row))
	}
	return stats, nil
}

func (r *AnalyticsRepository) Parts(ctx context.Context, f analytics.Filter) ([]analytics.PartUsage, error) {
	var parts []analytics.PartUsage
	err := conn(ctx, r.db).
		Table("ticket_parts p").
		Select("p.name AS name, SUM(p.quantity) AS quantity, COUNT(DISTINCT p.ticket_id) AS tickets").
		Joins("JOIN tickets t ON t.id = p.ticket_id AND t.deleted_at IS NULL").
		Where("p.created_at >= ? AND p.created_at < ?", f.From, f.To).
		Group("p.name").
		Order("quantity DESC, p.name ASC").
		Scan(&parts).Error
	return parts, err
}
