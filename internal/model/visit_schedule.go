package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/timeline"
)

type VisitSchedule struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	TicketID    uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:ux_visit_schedule" json:"ticket_id"`
	VisitNumber int                  `gorm:"not null;uniqueIndex:ux_visit_schedule" json:"visit_number"`
	Status      timeline.VisitStatus `gorm:"type:varchar(32);not null" json:"status"`
	Schedule    *time.Time           `json:"schedule"`
	ScheduledBy *uuid.UUID           `gorm:"type:uuid" json:"scheduled_by"`
	Reason      string               `gorm:"type:text" json:"reason"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (VisitSchedule) TableName() string {
	return "ticket_visit_schedules"
}

func (v *VisitSchedule) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
