// Package kanban groups tickets into status columns and decides what a
// card drop should do.
package kanban

import (
	"context"
	"errors"
	"fmt"

	"field-ticket-service/internal/status"
)

var ErrUnknownTicket = errors.New("ticket is not on the board")

type Card struct {
	ID           string          `json:"id"`
	TicketNumber string          `json:"ticket_number"`
	Company      string          `json:"company"`
	Problem      string          `json:"problem"`
	Priority     status.Priority `json:"priority"`
	Status       status.Status   `json:"status"`
	AssignedTo   *string         `json:"assigned_to,omitempty"`
	CurrentVisit int             `json:"current_visit"`
}

type Column struct {
	Status status.Status `json:"status"`
	Style  status.Style  `json:"style"`
	Cards  []Card        `json:"cards"`
}

type Board struct {
	Columns []Column `json:"columns"`
	// Unsorted holds cards whose stored status is outside the vocabulary.
	Unsorted []Card `json:"unsorted,omitempty"`
	index    map[string]status.Status
}

// Build places every card in the column for its status, keeping input order within a column.
func Build(cards []Card) *Board {
	board := &Board{
		Columns: make([]Column, len(status.All)),
		index:   make(map[string]status.Status, len(cards)),
	}
	positions := make(map[status.Status]int, len(status.All))
	for i, s := range status.All {
		board.Columns[i] = Column{Status: s, Style: s.Style(), Cards: []Card{}}
		positions[s] = i
	}

	for _, card := range cards {
		pos, ok := positions[card.Status]
		if !ok {
			board.Unsorted = append(board.Unsorted, card)
			board.index[card.ID] = card.Status
			continue
		}
		board.Columns[pos].Cards = append(board.Columns[pos].Cards, card)
		board.index[card.ID] = card.Status
	}
	return board
}

func (b *Board) Column(s status.Status) (Column, bool) {
	for _, col := range b.Columns {
		if col.Status == s {
			return col, true
		}
	}
	return Column{}, false
}

// MoveFunc persists a status change for one ticket.
type MoveFunc func(ctx context.Context, ticketID string, target status.Status) error

// Drop reports whether a move was requested. Dropping onto the card's own
// column does nothing; otherwise move is called once. The board itself is
// left untouched so callers refetch after a move.
func (b *Board) Drop(ctx context.Context, ticketID string, target status.Status, move MoveFunc) (bool, error) {
	current, ok := b.index[ticketID]
	if !ok {
		return false, ErrUnknownTicket
	}
	if !target.Valid() {
		return false, fmt.Errorf("unknown target column %q", target)
	}
	if current == target {
		return false, nil
	}
	if err := move(ctx, ticketID, target); err != nil {
		return false, err
	}
	return true, nil
}
