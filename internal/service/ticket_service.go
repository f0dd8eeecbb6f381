package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"field-ticket-service/internal/events"
	"field-ticket-service/internal/kanban"
	"field-ticket-service/internal/listview"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/render"
	"field-ticket-service/internal/repository"
	"field-ticket-service/internal/status"
	"field-ticket-service/internal/timeline"
	"field-ticket-service/internal/utils"
)

type TicketService struct {
	stores Stores
	log    zerolog.Logger
	now    func() time.Time
}

func NewTicketService(stores Stores, log zerolog.Logger) *TicketService {
	if stores.Events == nil {
		stores.Events = events.Nop{}
	}
	return &TicketService{
		stores: stores,
		log:    log.With().Str("component", "tickets").Logger(),
		now:    time.Now,
	}
}

type CreateTicketInput struct {
	CaseID       string
	Company      string
	SerialNumber string
	Problem      string
	Priority     string
	Schedule     *time.Time
	Deadline     *time.Time
	AssignedTo   *uuid.UUID
	Notes        string
}

func (s *TicketService) Create(ctx context.Context, principal model.Principal, input CreateTicketInput) (*model.Ticket, error) {
	if !principal.IsAdmin() && !principal.IsRequester() {
		return nil, ErrPermissionDenied
	}

	verr := NewValidationError()
	company := strings.TrimSpace(input.Company)
	if company == "" {
		verr.Add("company", "company is required")
	}
	problem := strings.TrimSpace(input.Problem)
	if problem == "" {
		verr.Add("problem", "problem is required")
	}
	priority := status.PriorityMedium
	if input.Priority != "" {
		p, err := status.ParsePriority(input.Priority)
		if err != nil {
			verr.Add("priority", err.Error())
		}
		priority = p
	}
	checkScheduleWindow(verr, input.Schedule, input.Deadline)
	if input.AssignedTo != nil && !principal.IsAdmin() {
		verr.Add("assigned_to", "only admins can assign engineers")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var engineer *model.User
	if input.AssignedTo != nil {
		var err error
		if engineer, err = s.loadEngineer(ctx, *input.AssignedTo); err != nil {
			return nil, err
		}
	}

	now := s.now()
	ticket := &model.Ticket{
		TicketNumber: utils.NewTicketNumber(now),
		CaseID:       strings.TrimSpace(input.CaseID),
		Company:      company,
		SerialNumber: strings.TrimSpace(input.SerialNumber),
		Problem:      problem,
		Priority:     priority,
		Status:       status.Open,
		Schedule:     input.Schedule,
		Deadline:     input.Deadline,
		CreatedBy:    principal.UserID,
		Notes:        input.Notes,
		CurrentVisit: 1,
	}

	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		if err := s.stores.History.Create(ctx, &model.StatusHistory{
			TicketID:  ticket.ID,
			NewStatus: status.Open,
			ChangedBy: principal.UserID,
			Notes:     "Ticket created",
		}); err != nil {
			return err
		}
		if engineer != nil {
			return assignEngineer(ctx, s.stores, ticket, engineer, principal.UserID, "", now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stores.Events.Publish(ctx, events.Event{
		Type:     events.TicketCreated,
		TicketID: ticket.ID,
		ActorID:  principal.UserID,
		Payload:  map[string]any{"ticket_number": ticket.TicketNumber, "priority": ticket.Priority},
	})
	s.log.Info().Str("ticket_id", ticket.ID.String()).Str("ticket_number", ticket.TicketNumber).Msg("ticket created")
	return ticket, nil
}

func checkScheduleWindow(verr *ValidationError, schedule, deadline *time.Time) {
	if schedule != nil && deadline != nil && deadline.Before(*schedule) {
		verr.Add("deadline", "deadline must not be before the schedule")
	}
}

func (s *TicketService) loadEngineer(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.stores.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, fieldError("assigned_to", "engineer not found")
		}
		return nil, err
	}
	if user.Role != model.UserRoleEngineer {
		return nil, fieldError("assigned_to", "user is not an engineer")
	}
	return user, nil
}

// TicketDetail is everything the ticket page renders.
type TicketDetail struct {
	*model.Ticket
	StatusStyle   status.Style             `json:"status_style"`
	PriorityStyle status.Style             `json:"priority_style"`
	ProblemHTML   string                   `json:"problem_html"`
	NotesHTML     string                   `json:"notes_html"`
	Timeline      timeline.Timeline        `json:"timeline"`
	Activities    []model.Activity         `json:"activities"`
	History       []model.StatusHistory    `json:"history"`
	Assignments   []model.TicketAssignment `json:"assignments"`
	Attachments   []model.Attachment       `json:"attachments"`
	Parts         []model.TicketPart       `json:"parts"`
}

func (s *TicketService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*TicketDetail, error) {
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, id)
	if err != nil {
		return nil, err
	}

	detail := &TicketDetail{
		Ticket:        ticket,
		StatusStyle:   status.StyleFor(string(ticket.Status)),
		PriorityStyle: status.PriorityStyleFor(string(ticket.Priority)),
	}
	if detail.ProblemHTML, err = render.HTML(ticket.Problem); err != nil {
		return nil, fmt.Errorf("render problem: %w", err)
	}
	if detail.NotesHTML, err = render.HTML(ticket.Notes); err != nil {
		return nil, fmt.Errorf("render notes: %w", err)
	}

	state, err := loadTimelineState(ctx, s.stores, ticket)
	if err != nil {
		return nil, err
	}
	detail.Timeline = timeline.Derive(state.input)
	detail.Activities = state.activities

	if detail.History, err = s.stores.History.ListByTicketID(ctx, ticket.ID); err != nil {
		return nil, err
	}
	if detail.Assignments, err = s.stores.Assignments.ListByTicketID(ctx, ticket.ID); err != nil {
		return nil, err
	}
	if detail.Attachments, err = s.stores.Attachments.ListByTicketID(ctx, ticket.ID); err != nil {
		return nil, err
	}
	if detail.Parts, err = s.stores.Parts.ListByTicketID(ctx, ticket.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListParams are the list screen's query parameters.
type ListParams struct {
	Search     string
	Status     string
	Priority   string
	AssignedTo string
	DateFrom   string
	DateTo     string
	Page       listview.Request
}

func ParseListParams(values url.Values) ListParams {
	return ListParams{
		Search:     values.Get("search"),
		Status:     values.Get("status"),
		Priority:   values.Get("priority"),
		AssignedTo: values.Get("assigned_to"),
		DateFrom:   values.Get("date_from"),
		DateTo:     values.Get("date_to"),
		Page:       listview.ParseRequest(values),
	}
}

// ParseStatusFilter accepts "active" or a comma separated list of statuses.
func ParseStatusFilter(raw string) ([]status.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.EqualFold(raw, "active") {
		return status.ActiveValues(), nil
	}
	var out []status.Status
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, err := status.Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *TicketService) buildFilter(principal model.Principal, params ListParams) (repository.TicketListFilter, error) {
	verr := NewValidationError()
	filter := repository.TicketListFilter{Search: utils.NormalizeSearch(params.Search)}

	statuses, err := ParseStatusFilter(params.Status)
	if err != nil {
		verr.Add("status", err.Error())
	}
	filter.Statuses = statuses

	if params.Priority != "" {
		p, err := status.ParsePriority(params.Priority)
		if err != nil {
			verr.Add("priority", err.Error())
		} else {
			filter.Priority = &p
		}
	}
	if params.AssignedTo != "" {
		id, err := uuid.Parse(params.AssignedTo)
		if err != nil {
			verr.Add("assigned_to", "assigned_to must be a user id")
		} else {
			filter.AssignedTo = &id
		}
	}
	if params.DateFrom != "" {
		from, err := time.Parse(time.DateOnly, params.DateFrom)
		if err != nil {
			verr.Add("date_from", "date_from must be YYYY-MM-DD")
		} else {
			filter.DateFrom = &from
		}
	}
	if params.DateTo != "" {
		to, err := time.Parse(time.DateOnly, params.DateTo)
		if err != nil {
			verr.Add("date_to", "date_to must be YYYY-MM-DD")
		} else {
			end := to.AddDate(0, 0, 1)
			filter.DateTo = &end
		}
	}
	if err := verr.OrNil(); err != nil {
		return filter, err
	}

	switch {
	case principal.IsAdmin():
	case principal.IsEngineer():
		self := principal.UserID
		filter.AssignedTo = &self
	case principal.IsRequester():
		self := principal.UserID
		filter.CreatedBy = &self
	default:
		return filter, ErrPermissionDenied
	}
	return filter, nil
}

func (s *TicketService) List(ctx context.Context, principal model.Principal, params ListParams) ([]model.Ticket, int64, error) {
	filter, err := s.buildFilter(principal, params)
	if err != nil {
		return nil, 0, err
	}
	page := params.Page.Normalize()
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()
	return s.stores.Tickets.List(ctx, filter)
}

// Board groups every ticket matching params into kanban columns.
func (s *TicketService) Board(ctx context.Context, principal model.Principal, params ListParams) (*kanban.Board, error) {
	filter, err := s.buildFilter(principal, params)
	if err != nil {
		return nil, err
	}
	tickets, _, err := s.stores.Tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	cards := make([]kanban.Card, 0, len(tickets))
	for _, t := range tickets {
		cards = append(cards, cardFor(t))
	}
	return kanban.Build(cards), nil
}

func cardFor(t model.Ticket) kanban.Card {
	var assigned *string
	if t.AssignedTo != nil {
		id := t.AssignedTo.String()
		assigned = &id
	}
	return kanban.Card{
		ID:           t.ID.String(),
		TicketNumber: t.TicketNumber,
		Company:      t.Company,
		Problem:      t.Problem,
		Priority:     t.Priority,
		Status:       t.Status,
		AssignedTo:   assigned,
		CurrentVisit: t.CurrentVisit,
	}
}

type UpdateTicketInput struct {
	CaseID       *string
	Company      *string
	SerialNumber *string
	Problem      *string
	Priority     *string
	Schedule     *time.Time
	Deadline     *time.Time
	Notes        *string
}

// Update edits descriptive fields. Requesters may edit their own tickets
// while they are still Open.
func (s *TicketService) Update(ctx context.Context, principal model.Principal, id uuid.UUID, input UpdateTicketInput) (*model.Ticket, error) {
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, id)
	if err != nil {
		return nil, err
	}
	switch {
	case principal.IsAdmin():
	case principal.IsRequester() && ticket.Status == status.Open:
	default:
		return nil, ErrPermissionDenied
	}
	if ticket.Status == status.Closed {
		return nil, ErrConflict
	}

	verr := NewValidationError()
	if input.CaseID != nil {
		ticket.CaseID = strings.TrimSpace(*input.CaseID)
	}
	if input.Company != nil {
		if ticket.Company = strings.TrimSpace(*input.Company); ticket.Company == "" {
			verr.Add("company", "company is required")
		}
	}
	if input.SerialNumber != nil {
		ticket.SerialNumber = strings.TrimSpace(*input.SerialNumber)
	}
	if input.Problem != nil {
		if ticket.Problem = strings.TrimSpace(*input.Problem); ticket.Problem == "" {
			verr.Add("problem", "problem is required")
		}
	}
	if input.Priority != nil {
		p, err := status.ParsePriority(*input.Priority)
		if err != nil {
			verr.Add("priority", err.Error())
		}
		ticket.Priority = p
	}
	if input.Schedule != nil {
		ticket.Schedule = input.Schedule
	}
	if input.Deadline != nil {
		ticket.Deadline = input.Deadline
	}
	if input.Notes != nil {
		ticket.Notes = *input.Notes
	}
	checkScheduleWindow(verr, ticket.Schedule, ticket.Deadline)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.stores.Tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.stores.Events.Publish(ctx, events.Event{Type: events.TicketUpdated, TicketID: ticket.ID, ActorID: principal.UserID})
	return ticket, nil
}

// ChangeStatus moves the ticket to target and appends one history row.
// Setting the current status again changes nothing.
func (s *TicketService) ChangeStatus(ctx context.Context, principal model.Principal, id uuid.UUID, target status.Status, notes string) (*model.Ticket, error) {
	if !target.Valid() {
		return nil, fieldError("status", fmt.Sprintf("unknown status %q", target))
	}
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, id)
	if err != nil {
		return nil, err
	}
	if !canWorkTicket(principal, ticket) {
		return nil, ErrPermissionDenied
	}
	if principal.IsEngineer() && (target == status.Closed || ticket.Status == status.Closed) {
		return nil, ErrPermissionDenied
	}
	if ticket.Status == target {
		return ticket, nil
	}

	old := ticket.Status
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return setStatus(ctx, s.stores, ticket, target, principal.UserID, notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.stores.Events.Publish(ctx, events.Event{
		Type:     events.TicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  principal.UserID,
		Payload:  map[string]any{"old_status": old, "new_status": target},
	})
	return ticket, nil
}

// Move applies a kanban drop: only a drop onto a different column changes
// the ticket.
func (s *TicketService) Move(ctx context.Context, principal model.Principal, id uuid.UUID, target status.Status, notes string) (*model.Ticket, bool, error) {
	if !target.Valid() {
		return nil, false, fieldError("status", fmt.Sprintf("unknown status %q", target))
	}
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, id)
	if err != nil {
		return nil, false, err
	}
	board := kanban.Build([]kanban.Card{cardFor(*ticket)})

	updated := ticket
	moved, err := board.Drop(ctx, ticket.ID.String(), target, func(ctx context.Context, _ string, target status.Status) error {
		var err error
		updated, err = s.ChangeStatus(ctx, principal, id, target, notes)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return updated, moved, nil
}

func (s *TicketService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if !principal.IsAdmin() {
		return ErrPermissionDenied
	}
	if _, err := loadTicket(ctx, s.stores.Tickets, id); err != nil {
		return err
	}
	if err := s.stores.Tickets.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	s.stores.Events.Publish(ctx, events.Event{Type: events.TicketDeleted, TicketID: id, ActorID: principal.UserID})
	return nil
}

func (s *TicketService) History(ctx context.Context, principal model.Principal, id uuid.UUID) ([]model.StatusHistory, error) {
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, id)
	if err != nil {
		return nil, err
	}
	return s.stores.History.ListByTicketID(ctx, ticket.ID)
}

// setStatus updates the ticket and appends the matching history row. It
// must run inside a transaction.
func setStatus(ctx context.Context, stores Stores, ticket *model.Ticket, target status.Status, actor uuid.UUID, notes string, now time.Time) error {
	old := ticket.Status
	ticket.Status = target
	if target == status.Finish && ticket.CompletedAt == nil {
		ticket.CompletedAt = &now
	}
	if err := stores.Tickets.Update(ctx, ticket); err != nil {
		return err
	}
	return stores.History.Create(ctx, &model.StatusHistory{
		TicketID:  ticket.ID,
		OldStatus: old,
		NewStatus: target,
		ChangedBy: actor,
		Notes:     notes,
	})
}
