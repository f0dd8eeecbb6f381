package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/status"
)

// StatusHistory rows are append-only.
type StatusHistory struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	TicketID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"ticket_id"`
	OldStatus status.Status `gorm:"type:varchar(32)" json:"old_status"`
	NewStatus status.Status `gorm:"type:varchar(32);not null" json:"new_status"`
	ChangedBy uuid.UUID     `gorm:"type:uuid;not null" json:"changed_by"`
	Notes     string        `gorm:"type:text" json:"notes"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`

	Changer *User `gorm:"foreignKey:ChangedBy" json:"changed_by_user,omitempty"`
}

func (StatusHistory) TableName() string {
	return "ticket_status_history"
}

func (h *StatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
