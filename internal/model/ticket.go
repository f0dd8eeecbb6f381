package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/status"
)

type Ticket struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	TicketNumber    string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"ticket_number"`
	CaseID          string          `gorm:"type:varchar(64)" json:"case_id"`
	Company         string          `gorm:"type:varchar(255);not null" json:"company"`
	SerialNumber    string          `gorm:"type:varchar(128)" json:"serial_number"`
	Problem         string          `gorm:"type:text;not null" json:"problem"`
	Priority        status.Priority `gorm:"type:varchar(16);not null;default:medium" json:"priority"`
	Status          status.Status   `gorm:"type:varchar(32);not null;default:Open;index" json:"status"`
	Schedule        *time.Time      `json:"schedule"`
	Deadline        *time.Time      `json:"deadline"`
	AssignedTo      *uuid.UUID      `gorm:"type:uuid;index" json:"assigned_to"`
	CreatedBy       uuid.UUID       `gorm:"type:uuid;not null;index" json:"created_by"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CurrentVisit    int             `gorm:"not null;default:1" json:"current_visit"`
	CompletionNotes string          `gorm:"type:text" json:"completion_notes"`
	CompletedAt     *time.Time      `json:"completed_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`

	AssignedUser *User `gorm:"foreignKey:AssignedTo" json:"assigned_user,omitempty"`
	Creator      *User `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
}

func (Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CurrentVisit == 0 {
		t.CurrentVisit = 1
	}
	return nil
}

// IsAssignedTo reports whether userID is the ticket's current engineer.
func (t *Ticket) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// CSVRecord is the export row for list downloads.
func (t Ticket) CSVRecord() []string {
	assigned := ""
	if t.AssignedUser != nil {
		assigned = t.AssignedUser.Name
	}
	return []string{
		t.TicketNumber,
		t.CaseID,
		t.Company,
		t.SerialNumber,
		t.Problem,
		string(t.Priority),
		string(t.Status),
		formatOptionalTime(t.Schedule),
		formatOptionalTime(t.Deadline),
		assigned,
		t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

var TicketCSVHeader = []string{
	"ticket_number", "case_id", "company", "serial_number", "problem",
	"priority", "status", "schedule", "deadline", "assigned_to", "created_at",
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
