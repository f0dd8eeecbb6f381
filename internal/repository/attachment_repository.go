package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return conn(ctx, r.db).Create(attachment).Error
}

func (r *AttachmentRepository) ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.Attachment, error) {
	var attachments []model.Attachment
	err := conn(ctx, r.db).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}

// PathReferenced reports whether any attachment, including soft-deleted
// ones, points at the stored file.
func (r *AttachmentRepository) PathReferenced(ctx context.Context, path string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Unscoped().
		Model(&model.Attachment{}).
		Where("path = ?", path).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}
