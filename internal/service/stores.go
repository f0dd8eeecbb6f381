package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"field-ticket-service/internal/events"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/repository"
	"field-ticket-service/internal/storage"
)

type TicketStore interface {
	Create(ctx context.Context, ticket *model.Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	Update(ctx context.Context, ticket *model.Ticket) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter repository.TicketListFilter) ([]model.Ticket, int64, error)
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListByRole(ctx context.Context, role model.UserRole) ([]model.User, error)
}

type AssignmentStore interface {
	Create(ctx context.Context, assignment *model.TicketAssignment) error
	DeactivateActive(ctx context.Context, ticketID uuid.UUID, at time.Time) error
	ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.TicketAssignment, error)
}

type ActivityStore interface {
	Create(ctx context.Context, activity *model.Activity) error
	ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.Activity, error)
}

type AttachmentStore interface {
	Create(ctx context.Context, attachment *model.Attachment) error
	ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.Attachment, error)
	PathReferenced(ctx context.Context, path string) (bool, error)
}

type VisitStore interface {
	Create(ctx context.Context, visit *model.VisitSchedule) error
	Update(ctx context.Context, visit *model.VisitSchedule) error
	ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.VisitSchedule, error)
}

type HistoryStore interface {
	Create(ctx context.Context, entry *model.StatusHistory) error
	ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.StatusHistory, error)
}

type PartStore interface {
	Create(ctx context.Context, part *model.TicketPart) error
	ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]model.TicketPart, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type FileStore interface {
	Save(ctx context.Context, name string, data []byte) (*storage.Stored, error)
	Release(path string)
	Discard(path string, referenced func() (bool, error)) (bool, error)
}

// Stores groups the persistence dependencies shared by the ticket workflows.
type Stores struct {
	Tickets     TicketStore
	Users       UserStore
	Assignments AssignmentStore
	Activities  ActivityStore
	Attachments AttachmentStore
	Visits      VisitStore
	History     HistoryStore
	Parts       PartStore
	Tx          Transactor
	Files       FileStore
	Events      events.Publisher
}
