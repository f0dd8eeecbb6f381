package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"field-ticket-service/internal/model"
	"field-ticket-service/internal/status"
)

type BulkAction string

const (
	BulkAssign BulkAction = "assign"
	BulkStatus BulkAction = "status"
	BulkDelete BulkAction = "delete"
)

const maxBulkTickets = 100

type BulkInput struct {
	Action     BulkAction
	TicketIDs  []uuid.UUID
	EngineerID *uuid.UUID
	Status     string
	Notes      string
}

type BulkFailure struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Error    string    `json:"error"`
}

type BulkResult struct {
	Action    BulkAction    `json:"action"`
	Succeeded []uuid.UUID   `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkService applies one action to each selected ticket independently; a
// failure on one ticket does not stop the rest.
type BulkService struct {
	tickets     *TicketService
	assignments *AssignmentService
}

func NewBulkService(tickets *TicketService, assignments *AssignmentService) *BulkService {
	return &BulkService{tickets: tickets, assignments: assignments}
}

func (s *BulkService) Apply(ctx context.Context, principal model.Principal, input BulkInput) (*BulkResult, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	ids, err := validateSelection(input.TicketIDs)
	if err != nil {
		return nil, err
	}

	var apply func(id uuid.UUID) error
	switch input.Action {
	case BulkAssign:
		if input.EngineerID == nil {
			return nil, fieldError("engineer_id", "engineer_id is required")
		}
		apply = func(id uuid.UUID) error {
			_, err := s.assignments.Assign(ctx, principal, id, AssignInput{EngineerID: *input.EngineerID, Notes: input.Notes})
			return err
		}
	case BulkStatus:
		target, err := status.Parse(input.Status)
		if err != nil {
			return nil, fieldError("status", err.Error())
		}
		apply = func(id uuid.UUID) error {
			_, err := s.tickets.ChangeStatus(ctx, principal, id, target, input.Notes)
			return err
		}
	case BulkDelete:
		apply = func(id uuid.UUID) error {
			return s.tickets.Delete(ctx, principal, id)
		}
	default:
		return nil, fieldError("action", "action must be assign, status or delete")
	}

	result := &BulkResult{Action: input.Action, Succeeded: []uuid.UUID{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if err := apply(id); err != nil {
			if !isClientError(err) {
				return nil, err
			}
			result.Failed = append(result.Failed, BulkFailure{TicketID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result, nil
}

// Export returns the selected tickets, or every ticket matching params when
// no ids are given, in list order.
func (s *BulkService) Export(ctx context.Context, principal model.Principal, ids []uuid.UUID, params ListParams) ([]model.Ticket, error) {
	filter, err := s.tickets.buildFilter(principal, params)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if ids, err = validateSelection(ids); err != nil {
			return nil, err
		}
		filter.IDs = ids
	}
	tickets, _, err := s.tickets.stores.Tickets.List(ctx, filter)
	return tickets, err
}

func validateSelection(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, fieldError("ticket_ids", "select at least one ticket")
	}
	if len(ids) > maxBulkTickets {
		return nil, fieldError("ticket_ids", fmt.Sprintf("at most %d tickets per request", maxBulkTickets))
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func isClientError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrPermissionDenied, ErrInvalidInput, ErrConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseBulkAction normalizes the action name.
func ParseBulkAction(raw string) BulkAction {
	return BulkAction(strings.ToLower(strings.TrimSpace(raw)))
}
