package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketPart struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	TicketID   uuid.UUID `gorm:"type:uuid;not null;index" json:"ticket_id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	RecordedBy uuid.UUID `gorm:"type:uuid;not null" json:"recorded_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TicketPart) TableName() string {
	return "ticket_parts"
}

func (p *TicketPart) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
