package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
)

// StatusHistoryRepository only appends and reads; history rows are never
// updated or removed.
type StatusHistoryRepository struct {
	db *gorm.DB
}

func NewStatusHistoryRepository(db *gorm.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

func (r *StatusHistoryRepository) Create(ctx context.Context, entry *model.StatusHistory) error {
	return conn(ctx, r.db).Omit("Changer").Create(entry).Error
}

func (r *StatusHistoryRepository) ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.StatusHistory, error) {
	var entries []model.StatusHistory
	err := conn(ctx, r.db).
		Preload("Changer").
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
