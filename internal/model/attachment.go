package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttachmentKind string

const (
	AttachmentKindActivity   AttachmentKind = "activity"
	AttachmentKindCompletion AttachmentKind = "completion"
)

type Attachment struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	TicketID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"ticket_id"`
	ActivityID   *uuid.UUID     `gorm:"type:uuid;index" json:"activity_id"`
	Kind         AttachmentKind `gorm:"type:varchar(16);not null" json:"kind"`
	OriginalName string         `gorm:"type:varchar(255);not null" json:"original_name"`
	ContentType  string         `gorm:"type:varchar(64);not null" json:"content_type"`
	Size         int64          `gorm:"not null" json:"size"`
	Digest       string         `gorm:"type:varchar(64);not null" json:"digest"`
	Path         string         `gorm:"type:text;not null" json:"-"`
	URL          string         `gorm:"type:text;not null" json:"url"`
	UploadedBy   uuid.UUID      `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Attachment) TableName() string {
	return "ticket_attachments"
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
