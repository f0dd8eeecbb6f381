package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"field-ticket-service/internal/events"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/status"
)

type AssignmentService struct {
	stores  Stores
	tickets *TicketService
	log     zerolog.Logger
	now     func() time.Time
}

func NewAssignmentService(stores Stores, tickets *TicketService, log zerolog.Logger) *AssignmentService {
	if stores.Events == nil {
		stores.Events = events.Nop{}
	}
	return &AssignmentService{
		stores:  stores,
		tickets: tickets,
		log:     log.With().Str("component", "assignments").Logger(),
		now:     time.Now,
	}
}

type AssignInput struct {
	EngineerID uuid.UUID
	Notes      string
}

// Assign makes the engineer the ticket's only active assignee. Reassigning
// the current engineer is a no-op.
func (s *AssignmentService) Assign(ctx context.Context, principal model.Principal, ticketID uuid.UUID, input AssignInput) (*model.Ticket, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	ticket, err := loadTicket(ctx, s.stores.Tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == status.Closed {
		return nil, ErrConflict
	}
	engineer, err := s.tickets.loadEngineer(ctx, input.EngineerID)
	if err != nil {
		if verr, ok := err.(*ValidationError); ok {
			return nil, &ValidationError{Fields: map[string]string{"engineer_id": verr.Fields["assigned_to"]}}
		}
		return nil, err
	}
	if ticket.IsAssignedTo(engineer.ID) {
		return ticket, nil
	}

	previous := ticket.AssignedTo
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return assignEngineer(ctx, s.stores, ticket, engineer, principal.UserID, input.Notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"engineer_id": engineer.ID}
	if previous != nil {
		payload["previous_engineer_id"] = *previous
	}
	s.stores.Events.Publish(ctx, events.Event{Type: events.TicketAssigned, TicketID: ticket.ID, ActorID: principal.UserID, Payload: payload})
	s.log.Info().Str("ticket_id", ticket.ID.String()).Str("engineer_id", engineer.ID.String()).Msg("ticket assigned")
	return ticket, nil
}

func (s *AssignmentService) List(ctx context.Context, principal model.Principal, ticketID uuid.UUID) ([]model.TicketAssignment, error) {
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, ticketID)
	if err != nil {
		return nil, err
	}
	return s.stores.Assignments.ListByTicketID(ctx, ticket.ID)
}

// assignEngineer closes the active assignment, opens a new one and points
// the ticket at the engineer. An Open ticket moves to Need to Receive.
// Must run inside a transaction.
func assignEngineer(ctx context.Context, stores Stores, ticket *model.Ticket, engineer *model.User, actor uuid.UUID, notes string, now time.Time) error {
	if err := stores.Assignments.DeactivateActive(ctx, ticket.ID, now); err != nil {
		return err
	}
	if err := stores.Assignments.Create(ctx, &model.TicketAssignment{
		TicketID:   ticket.ID,
		EngineerID: engineer.ID,
		AssignedBy: actor,
		Notes:      notes,
		AssignedAt: now,
		IsActive:   true,
	}); err != nil {
		return err
	}

	ticket.AssignedTo = &engineer.ID
	ticket.AssignedUser = engineer
	if ticket.Status == status.Open {
		return setStatus(ctx, stores, ticket, status.NeedToReceive, actor, fmt.Sprintf("Assigned to %s", engineer.Name), now)
	}
	return stores.Tickets.Update(ctx, ticket)
}
