package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/timeline"
)

// Activity records that a visit reached a timeline stage. At most one per
// (ticket, visit, stage).
type Activity struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	TicketID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_activity_stage" json:"ticket_id"`
	VisitNumber  int            `gorm:"not null;uniqueIndex:ux_activity_stage" json:"visit_number"`
	ActivityType timeline.Stage `gorm:"type:varchar(32);not null;uniqueIndex:ux_activity_stage" json:"activity_type"`
	Title        string         `gorm:"type:varchar(255);not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	ActivityTime time.Time      `gorm:"not null" json:"activity_time"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null" json:"user_id"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`

	Attachments []Attachment `gorm:"foreignKey:ActivityID" json:"attachments,omitempty"`
}

func (Activity) TableName() string {
	return "ticket_activities"
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.ActivityTime.IsZero() {
		a.ActivityTime = time.Now()
	}
	return nil
}
