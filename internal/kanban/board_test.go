package kanban_test

import (
	"context"
	"errors"
	"testing"

	"field-ticket-service/internal/kanban"
	"field-ticket-service/internal/status"
)

func sampleBoard() *kanban.Board {
	return kanban.Build([]kanban.Card{
		{ID: "t1", Status: status.Open},
		{ID: "t2", Status: status.InProgress},
		{ID: "t3", Status: status.Open},
		{ID: "t4", Status: status.Status("Archived")},
	})
}

func TestBuildGroupsInVocabularyOrder(t *testing.T) {
	board := sampleBoard()
	if len(board.Columns) != len(status.All) {
		t.Fatalf("expected %d columns got %d", len(status.All), len(board.Columns))
	}
	for i, col := range board.Columns {
		if col.Status != status.All[i] {
			t.Fatalf("column %d is %s", i, col.Status)
		}
		if col.Cards == nil {
			t.Fatalf("column %s should have an empty card list, not nil", col.Status)
		}
	}
	open, _ := board.Column(status.Open)
	if len(open.Cards) != 2 || open.Cards[0].ID != "t1" || open.Cards[1].ID != "t3" {
		t.Fatalf("unexpected open column %+v", open.Cards)
	}
	if len(board.Unsorted) != 1 || board.Unsorted[0].ID != "t4" {
		t.Fatalf("unknown status should land in unsorted, got %+v", board.Unsorted)
	}
}

func TestDropSameColumnIsNoop(t *testing.T) {
	board := sampleBoard()
	calls := 0
	moved, err := board.Drop(context.Background(), "t1", status.Open, func(context.Context, string, status.Status) error {
		calls++
		return nil
	})
	if err != nil || moved || calls != 0 {
		t.Fatalf("same column drop: moved=%v err=%v calls=%d", moved, err, calls)
	}
}

func TestDropOtherColumnCallsOnce(t *testing.T) {
	board := sampleBoard()
	var gotID string
	var gotTarget status.Status
	calls := 0
	moved, err := board.Drop(context.Background(), "t2", status.Finish, func(_ context.Context, id string, target status.Status) error {
		calls++
		gotID, gotTarget = id, target
		return nil
	})
	if err != nil || !moved {
		t.Fatalf("expected move, err=%v", err)
	}
	if calls != 1 || gotID != "t2" || gotTarget != status.Finish {
		t.Fatalf("callback calls=%d id=%s target=%s", calls, gotID, gotTarget)
	}
	col, _ := board.Column(status.InProgress)
	if len(col.Cards) != 1 {
		t.Fatalf("board must not be mutated by a drop")
	}
}

func TestDropErrors(t *testing.T) {
	board := sampleBoard()
	noop := func(context.Context, string, status.Status) error { return nil }

	if _, err := board.Drop(context.Background(), "missing", status.Open, noop); !errors.Is(err, kanban.ErrUnknownTicket) {
		t.Fatalf("expected ErrUnknownTicket got %v", err)
	}
	if _, err := board.Drop(context.Background(), "t1", status.Status("Nope"), noop); err == nil {
		t.Fatalf("expected error for unknown column")
	}

	boom := errors.New("boom")
	moved, err := board.Drop(context.Background(), "t1", status.Closed, func(context.Context, string, status.Status) error { return boom })
	if !errors.Is(err, boom) || moved {
		t.Fatalf("expected callback error, got moved=%v err=%v", moved, err)
	}
}
