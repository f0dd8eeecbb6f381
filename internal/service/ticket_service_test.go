package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"

	"field-ticket-service/internal/events"
	"field-ticket-service/internal/listview"
	"field-ticket-service/internal/status"
)

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.tickets.Create(context.Background(), f.requester, CreateTicketInput{Priority: "urgent"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError got %v", err)
	}
	for _, field := range []string{"company", "problem", "priority"} {
		if verr.Fields[field] == "" {
			t.Fatalf("expected error for %s, got %v", field, verr.Fields)
		}
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("validation errors must unwrap to ErrInvalidInput")
	}

	if _, err := f.tickets.Create(context.Background(), f.engineer, CreateTicketInput{Company: "a", Problem: "b"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("engineers cannot create tickets, got %v", err)
	}
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.tickets.Create(context.Background(), f.requester, CreateTicketInput{Company: " Acme ", Problem: "Leak"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ticket.Status != status.Open || ticket.Priority != status.PriorityMedium || ticket.CurrentVisit != 1 {
		t.Fatalf("unexpected defaults %+v", ticket)
	}
	if ticket.Company != "Acme" {
		t.Fatalf("company should be trimmed, got %q", ticket.Company)
	}
	if !regexp.MustCompile(`^TKT-\d{8}-[0-9A-F]{6}$`).MatchString(ticket.TicketNumber) {
		t.Fatalf("unexpected ticket number %s", ticket.TicketNumber)
	}
	history := f.historyFor(ticket.ID)
	if len(history) != 1 || history[0].NewStatus != status.Open {
		t.Fatalf("expected creation history row, got %+v", history)
	}
	if types := f.events.Types(); len(types) != 1 || types[0] != events.TicketCreated {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestAssignAndReassign(t *testing.T) {
	f := newFixture(t)
	ticket := f.newAssignedTicket(t)
	ctx := context.Background()

	if ticket.Status != status.NeedToReceive {
		t.Fatalf("assigning an open ticket should move it to Need to Receive, got %s", ticket.Status)
	}
	if _, err := f.assignments.Assign(ctx, f.engineer, ticket.ID, AssignInput{EngineerID: f.engineer2.UserID}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("only admins assign, got %v", err)
	}
	if _, err := f.assignments.Assign(ctx, f.admin, ticket.ID, AssignInput{EngineerID: f.requester.UserID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("assigning a requester should fail validation, got %v", err)
	}

	if _, err := f.assignments.Assign(ctx, f.admin, ticket.ID, AssignInput{EngineerID: f.engineer2.UserID, Notes: "swap"}); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	assignments, err := f.assignments.List(ctx, f.admin, ticket.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	active := 0
	for _, a := range assignments {
		if a.IsActive {
			active++
			if a.EngineerID != f.engineer2.UserID {
				t.Fatalf("wrong active engineer")
			}
		} else if a.UnassignedAt == nil {
			t.Fatalf("inactive assignment should record unassigned_at")
		}
	}
	if len(assignments) != 2 || active != 1 {
		t.Fatalf("expected 2 assignments with 1 active, got %d/%d", len(assignments), active)
	}
	if got := f.ticket(t, ticket.ID); !got.IsAssignedTo(f.engineer2.UserID) {
		t.Fatalf("ticket should point at the new engineer")
	}
	if len(f.historyFor(ticket.ID)) != 2 {
		t.Fatalf("reassigning should not append status history")
	}

	before := len(f.events.Types())
	if _, err := f.assignments.Assign(ctx, f.admin, ticket.ID, AssignInput{EngineerID: f.engineer2.UserID}); err != nil {
		t.Fatalf("same engineer: %v", err)
	}
	if len(f.events.Types()) != before {
		t.Fatalf("assigning the current engineer should be a no-op")
	}
}

func TestChangeStatusSameValueAppendsNothing(t *testing.T) {
	f := newFixture(t)
	ticket := f.newAssignedTicket(t)
	ctx := context.Background()
	before := len(f.historyFor(ticket.ID))

	if _, err := f.tickets.ChangeStatus(ctx, f.admin, ticket.ID, status.NeedToReceive, ""); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if len(f.historyFor(ticket.ID)) != before {
		t.Fatalf("same status must not append history")
	}

	if _, err := f.tickets.ChangeStatus(ctx, f.engineer, ticket.ID, status.InProgress, "on it"); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	history := f.historyFor(ticket.ID)
	last := history[len(history)-1]
	if len(history) != before+1 || last.OldStatus != status.NeedToReceive || last.NewStatus != status.InProgress || last.Notes != "on it" {
		t.Fatalf("unexpected history %+v", history)
	}

	if _, err := f.tickets.ChangeStatus(ctx, f.engineer, ticket.ID, status.Closed, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("engineers cannot close tickets, got %v", err)
	}
	if _, err := f.tickets.ChangeStatus(ctx, f.engineer2, ticket.ID, status.Finish, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("unassigned engineer must be denied, got %v", err)
	}
}

func TestMoveFollowsDropSemantics(t *testing.T) {
	f := newFixture(t)
	ticket := f.newAssignedTicket(t)
	ctx := context.Background()

	_, moved, err := f.tickets.Move(ctx, f.admin, ticket.ID, status.NeedToReceive, "")
	if err != nil || moved {
		t.Fatalf("drop on own column: moved=%v err=%v", moved, err)
	}

	updated, moved, err := f.tickets.Move(ctx, f.admin, ticket.ID, status.Finish, "")
	if err != nil || !moved || updated.Status != status.Finish {
		t.Fatalf("drop on other column: moved=%v err=%v", moved, err)
	}
	if updated.CompletedAt == nil {
		t.Fatalf("moving to Finish should stamp completed_at")
	}

	if _, _, err := f.tickets.Move(ctx, f.admin, ticket.ID, status.Status("Parked"), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown column should be invalid input, got %v", err)
	}
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assigned := f.newAssignedTicket(t)
	other, err := f.tickets.Create(ctx, f.admin, CreateTicketInput{Company: "Globex", Problem: "Noise"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.tickets.ChangeStatus(ctx, f.admin, other.ID, status.Closed, ""); err != nil {
		t.Fatalf("close: %v", err)
	}

	all, total, err := f.tickets.List(ctx, f.admin, ListParams{Page: listview.Request{Page: 1, PerPage: 10}})
	if err != nil || total != 2 || len(all) != 2 {
		t.Fatalf("admin should see everything: total=%d err=%v", total, err)
	}

	mine, total, _ := f.tickets.List(ctx, f.engineer, ListParams{})
	if total != 1 || mine[0].ID != assigned.ID {
		t.Fatalf("engineer should only see assigned tickets")
	}
	if _, total, _ := f.tickets.List(ctx, f.engineer2, ListParams{}); total != 0 {
		t.Fatalf("second engineer has no tickets, got %d", total)
	}
	if _, total, _ := f.tickets.List(ctx, f.requester, ListParams{}); total != 1 {
		t.Fatalf("requester should only see own tickets, got %d", total)
	}

	active, total, _ := f.tickets.List(ctx, f.admin, ListParams{Status: "active"})
	if total != 1 || active[0].ID != assigned.ID {
		t.Fatalf("active filter should exclude closed tickets")
	}
	if _, total, _ := f.tickets.List(ctx, f.admin, ListParams{Status: "closed,need_to_receive"}); total != 2 {
		t.Fatalf("comma status list should match both, got %d", total)
	}

	_, _, err = f.tickets.List(ctx, f.admin, ListParams{Status: "Archived", DateFrom: "yesterday"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["status"] == "" || verr.Fields["date_from"] == "" {
		t.Fatalf("expected field errors, got %v", err)
	}
}

func TestBoardGroupsVisibleTickets(t *testing.T) {
	f := newFixture(t)
	ticket := f.newAssignedTicket(t)

	board, err := f.tickets.Board(context.Background(), f.engineer, ListParams{})
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	col, _ := board.Column(status.NeedToReceive)
	if len(col.Cards) != 1 || col.Cards[0].ID != ticket.ID.String() {
		t.Fatalf("unexpected column %+v", col)
	}
}

func TestGetDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.tickets.Create(ctx, f.requester, CreateTicketInput{Company: "Acme", Problem: "Valve **stuck**", Notes: "call first"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	detail, err := f.tickets.Get(ctx, f.requester, ticket.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(detail.ProblemHTML, "<strong>stuck</strong>") {
		t.Fatalf("problem should be rendered, got %q", detail.ProblemHTML)
	}
	if detail.StatusStyle.Label != "Open" {
		t.Fatalf("unexpected status style %+v", detail.StatusStyle)
	}
	if len(detail.Timeline.Visits) != 1 || detail.Timeline.Visits[0].CurrentStageIndex != 0 || detail.Timeline.Visits[0].Locked {
		t.Fatalf("fresh ticket timeline should start at received, got %+v", detail.Timeline)
	}

	if _, err := f.tickets.Get(ctx, f.engineer, ticket.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("unassigned engineer must be denied, got %v", err)
	}
	if _, err := f.tickets.Get(ctx, f.admin, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, _ := f.tickets.Create(ctx, f.requester, CreateTicketInput{Company: "Acme", Problem: "Leak"})

	company := "Acme Ltd"
	updated, err := f.tickets.Update(ctx, f.requester, ticket.ID, UpdateTicketInput{Company: &company})
	if err != nil || updated.Company != company {
		t.Fatalf("requester should edit an open ticket: %v", err)
	}

	empty := " "
	if _, err := f.tickets.Update(ctx, f.admin, ticket.ID, UpdateTicketInput{Problem: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank problem should fail, got %v", err)
	}

	if _, err := f.assignments.Assign(ctx, f.admin, ticket.ID, AssignInput{EngineerID: f.engineer.UserID}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.tickets.Update(ctx, f.requester, ticket.ID, UpdateTicketInput{Company: &company}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("requester cannot edit once work started, got %v", err)
	}
}

func TestDeleteIsSoftAndAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newAssignedTicket(t)

	if err := f.tickets.Delete(ctx, f.requester, ticket.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("requester cannot delete, got %v", err)
	}
	if err := f.tickets.Delete(ctx, f.admin, ticket.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.tickets.Get(ctx, f.admin, ticket.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted ticket should be hidden, got %v", err)
	}
	if _, ok := f.db.tickets[ticket.ID]; !ok {
		t.Fatalf("soft delete must keep the row")
	}
}
