package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"field-ticket-service/internal/model"
	"field-ticket-service/internal/status"
)

type PartService struct {
	stores Stores
}

func NewPartService(stores Stores) *PartService {
	return &PartService{stores: stores}
}

type RecordPartInput struct {
	Name     string
	Quantity int
}

func (s *PartService) Record(ctx context.Context, principal model.Principal, ticketID uuid.UUID, input RecordPartInput) (*model.TicketPart, error) {
	verr := NewValidationError()
	name := strings.TrimSpace(input.Name)
	if name == "" {
		verr.Add("name", "part name is required")
	}
	if input.Quantity < 1 {
		verr.Add("quantity", "quantity must be at least 1")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !canWorkTicket(principal, ticket) {
		return nil, ErrPermissionDenied
	}
	if ticket.Status == status.Closed {
		return nil, ErrConflict
	}

	part := &model.TicketPart{
		TicketID:   ticket.ID,
		Name:       name,
		Quantity:   input.Quantity,
		RecordedBy: principal.UserID,
	}
	if err := s.stores.Parts.Create(ctx, part); err != nil {
		return nil, err
	}
	return part, nil
}

func (s *PartService) List(ctx context.Context, principal model.Principal, ticketID uuid.UUID) ([]model.TicketPart, error) {
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, ticketID)
	if err != nil {
		return nil, err
	}
	return s.stores.Parts.ListByTicketID(ctx, ticket.ID)
}
