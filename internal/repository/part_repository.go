package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
)

type PartRepository struct {
	db *gorm.DB
}

func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

func (r *PartRepository) Create(ctx context.Context, part *model.TicketPart) error {
	return conn(ctx, r.db).Create(part).Error
}

func (r *PartRepository) ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.TicketPart, error) {
	var parts []model.TicketPart
	err := conn(ctx, r.db).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&parts).Error
	return parts, err
}
