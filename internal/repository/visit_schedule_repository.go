package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
)

type VisitScheduleRepository struct {
	db *gorm.DB
}

func NewVisitScheduleRepository(db *gorm.DB) *VisitScheduleRepository {
	return &VisitScheduleRepository{db: db}
}

func (r *VisitScheduleRepository) Create(ctx context.Context, visit *model.VisitSchedule) error {
	return conn(ctx, r.db).Create(visit).Error
}

func (r *VisitScheduleRepository) Update(ctx context.Context, visit *model.VisitSchedule) error {
	return conn(ctx, r.db).Save(visit).Error
}

func (r *VisitScheduleRepository) ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.VisitSchedule, error) {
	var visits []model.VisitSchedule
	err := conn(ctx, r.db).
		Where("ticket_id = ?", ticketID).
		Order("visit_number ASC").
		Find(&visits).Error
	return visits, err
}
