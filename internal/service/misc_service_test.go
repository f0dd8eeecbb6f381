package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"field-ticket-service/internal/model"
	"field-ticket-service/internal/status"
)

func TestBulkContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newAssignedTicket(t)
	missing := uuid.New()

	res, err := f.bulk.Apply(ctx, f.admin, BulkInput{
		Action:    BulkStatus,
		TicketIDs: []uuid.UUID{ticket.ID, missing, ticket.ID},
		Status:    "in_progress",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Succeeded) != 1 || res.Succeeded[0] != ticket.ID {
		t.Fatalf("unexpected succeeded %v", res.Succeeded)
	}
	if len(res.Failed) != 1 || res.Failed[0].TicketID != missing {
		t.Fatalf("unexpected failed %v", res.Failed)
	}
	if f.ticket(t, ticket.ID).Status != status.InProgress {
		t.Fatalf("status should be applied")
	}

	if _, err := f.bulk.Apply(ctx, f.engineer, BulkInput{Action: BulkDelete, TicketIDs: []uuid.UUID{ticket.ID}}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("bulk is admin only, got %v", err)
	}
	if _, err := f.bulk.Apply(ctx, f.admin, BulkInput{Action: "archive", TicketIDs: []uuid.UUID{ticket.ID}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown action should fail, got %v", err)
	}
	if _, err := f.bulk.Apply(ctx, f.admin, BulkInput{Action: BulkAssign}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty selection should fail, got %v", err)
	}
}

func TestBulkAssignAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.tickets.Create(ctx, f.requester, CreateTicketInput{Company: "A", Problem: "x"})
	b, _ := f.tickets.Create(ctx, f.requester, CreateTicketInput{Company: "B", Problem: "y"})

	res, err := f.bulk.Apply(ctx, f.admin, BulkInput{Action: BulkAssign, TicketIDs: []uuid.UUID{a.ID, b.ID}, EngineerID: &f.engineer.UserID})
	if err != nil || len(res.Succeeded) != 2 {
		t.Fatalf("bulk assign: %+v %v", res, err)
	}

	rows, err := f.bulk.Export(ctx, f.engineer, []uuid.UUID{a.ID}, ListParams{})
	if err != nil || len(rows) != 1 || rows[0].ID != a.ID {
		t.Fatalf("export by id: %v %v", rows, err)
	}
	rows, err = f.bulk.Export(ctx, f.engineer, nil, ListParams{})
	if err != nil || len(rows) != 2 {
		t.Fatalf("export by filter: %v %v", rows, err)
	}
	if got := rows[0].CSVRecord(); len(got) != len(model.TicketCSVHeader) {
		t.Fatalf("csv row does not match header: %v", got)
	}
}

func TestPartsRequireWorkAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newAssignedTicket(t)

	if _, err := f.parts.Record(ctx, f.engineer, ticket.ID, RecordPartInput{Name: "", Quantity: 0}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.parts.Record(ctx, f.requester, ticket.ID, RecordPartInput{Name: "seal", Quantity: 1}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("requesters cannot record parts, got %v", err)
	}
	if _, err := f.parts.Record(ctx, f.engineer, ticket.ID, RecordPartInput{Name: "seal", Quantity: 2}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	parts, err := f.parts.List(ctx, f.requester, ticket.ID)
	if err != nil || len(parts) != 1 || parts[0].Quantity != 2 {
		t.Fatalf("List: %v %v", parts, err)
	}
}

type stubIssuer struct{}

func (stubIssuer) Issue(user *model.User) (string, time.Time, error) {
	return "token-" + user.ID.String(), time.Now().Add(time.Hour), nil
}

func TestUserCreateAndLogin(t *testing.T) {
	db := newMemDB()
	svc := NewUserService(memUsers{db}, stubIssuer{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateUserInput{Name: "", Email: "bad", Role: "boss", Password: "short"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}

	user, err := svc.Create(ctx, CreateUserInput{Name: "Eli", Email: "Eli@Example.com", Role: "engineer", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.Email != "eli@example.com" || user.PasswordHash == "correct horse" {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, err := svc.Create(ctx, CreateUserInput{Name: "Eli", Email: "eli@example.com", Role: "engineer", Password: "correct horse"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("duplicate email should fail validation, got %v", err)
	}

	res, err := svc.Login(ctx, "eli@example.com", "correct horse")
	if err != nil || res.AccessToken != "token-"+user.ID.String() {
		t.Fatalf("Login: %+v %v", res, err)
	}
	if _, err := svc.Login(ctx, "eli@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong password should be unauthorized, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown email should be unauthorized, got %v", err)
	}

	engineers, err := svc.Engineers(ctx, model.Principal{UserID: user.ID, Role: model.UserRoleAdmin})
	if err != nil || len(engineers) != 1 {
		t.Fatalf("Engineers: %v %v", engineers, err)
	}
}
