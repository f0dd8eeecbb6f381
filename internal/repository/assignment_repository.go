package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, assignment *model.TicketAssignment) error {
	return conn(ctx, r.db).Omit("Engineer").Create(assignment).Error
}

// DeactivateActive closes the ticket's current assignment, if any.
func (r *AssignmentRepository) DeactivateActive(ctx context.Context, ticketID uuid.UUID, at time.Time) error {
	return conn(ctx, r.db).Model(&model.TicketAssignment{}).
		Where("ticket_id = ? AND is_active = ?", ticketID, true).
		Updates(map[string]interface{}{
			"is_active":     false,
			"unassigned_at": at,
		}).Error
}

// ListByTicketID returns the full assignment history, newest first.
func (r *AssignmentRepository) ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.TicketAssignment, error) {
	var assignments []model.TicketAssignment
	err := conn(ctx, r.db).
		Preload("Engineer").
		Where("ticket_id = ?", ticketID).
		Order("assigned_at DESC").
		Find(&assignments).Error
	return assignments, err
}
