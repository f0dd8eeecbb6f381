package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create fails with gorm.ErrDuplicatedKey when the stage is already recorded
// for the visit.
func (r *ActivityRepository) Create(ctx context.Context, activity *model.Activity) error {
	return conn(ctx, r.db).Omit("Attachments").Create(activity).Error
}

func (r *ActivityRepository) ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.Activity, error) {
	var activities []model.Activity
	err := conn(ctx, r.db).
		Preload("Attachments").
		Where("ticket_id = ?", ticketID).
		Order("visit_number ASC, activity_time ASC").
		Find(&activities).Error
	return activities, err
}
