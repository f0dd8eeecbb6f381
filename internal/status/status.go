package status

import (
	"fmt"
	"strings"
)

// Status is the ticket lifecycle vocabulary shared by lists, filters,
// the kanban board, the timeline and analytics.
type Status string

const (
	Open          Status = "Open"
	NeedToReceive Status = "Need to Receive"
	InProgress    Status = "In Progress"
	Finish        Status = "Finish"
	Closed        Status = "Closed"
)

// All lists the known statuses in board/column order.
var All = []Status{Open, NeedToReceive, InProgress, Finish, Closed}

type Style struct {
	Label        string `json:"label"`
	ColorClasses string `json:"color_classes"`
	Icon         string `json:"icon"`
}

var FallbackStyle = Style{
	Label:        "Unknown",
	ColorClasses: "bg-gray-100 text-gray-800 border-gray-200",
	Icon:         "help-circle",
}

var styles = map[Status]Style{
	Open:          {Label: "Open", ColorClasses: "bg-blue-100 text-blue-800 border-blue-200", Icon: "inbox"},
	NeedToReceive: {Label: "Need to Receive", ColorClasses: "bg-yellow-100 text-yellow-800 border-yellow-200", Icon: "package"},
	InProgress:    {Label: "In Progress", ColorClasses: "bg-orange-100 text-orange-800 border-orange-200", Icon: "loader"},
	Finish:        {Label: "Finish", ColorClasses: "bg-green-100 text-green-800 border-green-200", Icon: "check-circle"},
	Closed:        {Label: "Closed", ColorClasses: "bg-slate-200 text-slate-700 border-slate-300", Icon: "lock"},
}

// StyleFor never fails: unrecognized values get FallbackStyle.
func StyleFor(raw string) Style {
	s, err := Parse(raw)
	if err != nil {
		return FallbackStyle
	}
	return s.Style()
}

func (s Status) Style() Style {
	switch s {
	case Open, NeedToReceive, InProgress, Finish, Closed:
		return styles[s]
	default:
		return FallbackStyle
	}
}

func (s Status) Valid() bool {
	switch s {
	case Open, NeedToReceive, InProgress, Finish, Closed:
		return true
	default:
		return false
	}
}

// IsActive reports whether s counts as an active ticket (everything but Closed).
func (s Status) IsActive() bool {
	switch s {
	case Open, NeedToReceive, InProgress, Finish:
		return true
	default:
		return false
	}
}

// Slug is the snake_case form used in query strings and column keys.
func (s Status) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "_")
}

// Parse accepts the exact value, any casing of it, or its slug.
func Parse(raw string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	for _, s := range All {
		if strings.ToLower(string(s)) == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown ticket status %q", raw)
}

// ActiveValues returns the active set in column order.
func ActiveValues() []Status {
	out := make([]Status, 0, len(All)-1)
	for _, s := range All {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// Counts is a per-status tally, as returned by grouped queries.
type Counts map[Status]int64

func (c Counts) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

// Active sums the active statuses. It always equals Total minus the Closed count
// because unknown keys are never admitted into Counts by Add.
func (c Counts) Active() int64 {
	var active int64
	for s, n := range c {
		if s.IsActive() {
			active += n
		}
	}
	return active
}

// Add tallies a raw status value, rejecting values outside the vocabulary.
func (c Counts) Add(raw string, n int64) error {
	s, err := Parse(raw)
	if err != nil {
		return err
	}
	c[s] += n
	return nil
}

type Descriptor struct {
	Value  Status `json:"value"`
	Slug   string `json:"slug"`
	Active bool   `json:"active"`
	Style
}

// Describe returns the vocabulary for clients, in column order.
func Describe() []Descriptor {
	out := make([]Descriptor, 0, len(All))
	for _, s := range All {
		out = append(out, Descriptor{Value: s, Slug: s.Slug(), Active: s.IsActive(), Style: s.Style()})
	}
	return out
}
