package service

import (
	"context"

	"github.com/google/uuid"

	"field-ticket-service/internal/model"
)

func canViewTicket(principal model.Principal, ticket *model.Ticket) bool {
	switch {
	case principal.IsAdmin():
		return true
	case principal.IsEngineer():
		return ticket.IsAssignedTo(principal.UserID)
	case principal.IsRequester():
		return ticket.CreatedBy == principal.UserID
	}
	return false
}

// canWorkTicket covers timeline actions, parts and status moves.
func canWorkTicket(principal model.Principal, ticket *model.Ticket) bool {
	if principal.IsAdmin() {
		return true
	}
	return principal.IsEngineer() && ticket.IsAssignedTo(principal.UserID)
}

func loadTicket(ctx context.Context, tickets TicketStore, id uuid.UUID) (*model.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

// loadVisible fails with ErrPermissionDenied for tickets outside the caller's scope.
func loadVisible(ctx context.Context, tickets TicketStore, principal model.Principal, id uuid.UUID) (*model.Ticket, error) {
	ticket, err := loadTicket(ctx, tickets, id)
	if err != nil {
		return nil, err
	}
	if !canViewTicket(principal, ticket) {
		return nil, ErrPermissionDenied
	}
	return ticket, nil
}
