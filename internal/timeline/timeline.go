// Package timeline derives the per-visit progress of a ticket from its
// recorded activities and visit schedules, and checks stage submissions
// against the same rules.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"field-ticket-service/internal/status"
)

type Stage string

const (
	StageReceived     Stage = "received"
	StageOnTheWay     Stage = "on_the_way"
	StageArrived      Stage = "arrived"
	StageStartWorking Stage = "start_working"
	StageCompleted    Stage = "completed"
)

// Stages is the fixed, ordered checkpoint list of every visit.
var Stages = [...]Stage{StageReceived, StageOnTheWay, StageArrived, StageStartWorking, StageCompleted}

// NoCurrentStage is the current-stage index of a visit with every stage recorded.
const NoCurrentStage = len(Stages)

// MaxVisits caps how many visits a ticket may need.
const MaxVisits = 3

var stageLabels = map[Stage]string{
	StageReceived:     "Received",
	StageOnTheWay:     "On the Way",
	StageArrived:      "Arrived",
	StageStartWorking: "Start Working",
	StageCompleted:    "Completed",
}

func ParseStage(raw string) (Stage, error) {
	s := Stage(raw)
	if s.Index() < 0 {
		return "", fmt.Errorf("unknown activity type %q", raw)
	}
	return s, nil
}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

type VisitStatus string

const (
	VisitPendingSchedule VisitStatus = "pending_schedule"
	VisitScheduled       VisitStatus = "scheduled"
	VisitInProgress      VisitStatus = "in_progress"
	VisitCompleted       VisitStatus = "completed"
)

func (v VisitStatus) Valid() bool {
	switch v {
	case VisitPendingSchedule, VisitScheduled, VisitInProgress, VisitCompleted:
		return true
	default:
		return false
	}
}

// Activity is the part of a recorded activity the derivation needs.
type Activity struct {
	VisitNumber int
	Type        Stage
	At          time.Time
}

// Schedule is the part of a visit schedule the derivation needs.
type Schedule struct {
	Status   VisitStatus
	Schedule *time.Time
	Reason   string
}

type Input struct {
	TicketStatus status.Status
	CurrentVisit int
	Activities   []Activity
	Schedules    map[int]Schedule
}

type StageState struct {
	Stage      Stage      `json:"stage"`
	Label      string     `json:"label"`
	Index      int        `json:"index"`
	Completed  bool       `json:"completed"`
	Current    bool       `json:"current"`
	Clickable  bool       `json:"clickable"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

type Visit struct {
	Number            int          `json:"visit_number"`
	Status            VisitStatus  `json:"status"`
	Schedule          *time.Time   `json:"schedule,omitempty"`
	Reason            string       `json:"reason,omitempty"`
	Locked            bool         `json:"locked"`
	Completed         bool         `json:"completed"`
	CurrentStageIndex int          `json:"current_stage_index"`
	CanSchedule       bool         `json:"can_schedule"`
	CanRequestRevisit bool         `json:"can_request_revisit"`
	Stages            []StageState `json:"stages"`
}

type Timeline struct {
	CurrentVisit     int     `json:"current_visit"`
	TotalVisits      int     `json:"total_visits"`
	MaxVisits        int     `json:"max_visits"`
	RevisitAvailable bool    `json:"revisit_available"`
	Visits           []Visit `json:"visits"`
}

// RevisitAvailable reports whether another visit may still be requested.
func RevisitAvailable(currentVisit int) bool {
	return currentVisit < MaxVisits
}

// TotalVisits is max(current visit, highest scheduled visit number).
func TotalVisits(currentVisit int, schedules map[int]Schedule) int {
	total := currentVisit
	for number := range schedules {
		if number > total {
			total = number
		}
	}
	if total < 1 {
		total = 1
	}
	return total
}

// VisitStatusOf resolves a visit's status; visit 1 defaults to in progress,
// later visits without a schedule stay pending.
func VisitStatusOf(visitNumber int, schedules map[int]Schedule) VisitStatus {
	if sched, ok := schedules[visitNumber]; ok && sched.Status != "" {
		return sched.Status
	}
	if visitNumber == 1 {
		return VisitInProgress
	}
	return VisitPendingSchedule
}

// recorded indexes activities by visit and stage.
type recorded map[int]map[Stage]time.Time

func index(activities []Activity) recorded {
	out := recorded{}
	for _, a := range activities {
		if a.Type.Index() < 0 {
			continue
		}
		stages, ok := out[a.VisitNumber]
		if !ok {
			stages = map[Stage]time.Time{}
			out[a.VisitNumber] = stages
		}
		if prev, seen := stages[a.Type]; !seen || a.At.Before(prev) {
			stages[a.Type] = a.At
		}
	}
	return out
}

// CurrentStageIndex is the index of the first stage without an activity,
// NoCurrentStage when all are recorded.
func CurrentStageIndex(visitNumber int, activities []Activity) int {
	return index(activities).currentStage(visitNumber)
}

func (r recorded) currentStage(visitNumber int) int {
	stages := r[visitNumber]
	for i, stage := range Stages {
		if _, ok := stages[stage]; !ok {
			return i
		}
	}
	return NoCurrentStage
}

func visitCompleted(visitNumber, currentVisit int, visitStatus VisitStatus, currentStage int) bool {
	return visitNumber < currentVisit || visitStatus == VisitCompleted || currentStage == NoCurrentStage
}

// Derive computes the full timeline view for a ticket.
func Derive(in Input) Timeline {
	currentVisit := in.CurrentVisit
	if currentVisit < 1 {
		currentVisit = 1
	}
	rec := index(in.Activities)
	total := TotalVisits(currentVisit, in.Schedules)
	closed := in.TicketStatus == status.Closed

	tl := Timeline{
		CurrentVisit:     currentVisit,
		TotalVisits:      total,
		MaxVisits:        MaxVisits,
		RevisitAvailable: RevisitAvailable(currentVisit),
		Visits:           make([]Visit, 0, total),
	}

	for number := 1; number <= total; number++ {
		visitStatus := VisitStatusOf(number, in.Schedules)
		sched := in.Schedules[number]
		visit := Visit{
			Number:   number,
			Status:   visitStatus,
			Schedule: sched.Schedule,
			Reason:   sched.Reason,
			Locked:   visitStatus == VisitPendingSchedule,
		}

		visit.CurrentStageIndex = rec.currentStage(number)
		visit.Completed = visitCompleted(number, currentVisit, visitStatus, visit.CurrentStageIndex)

		if visit.Locked {
			visit.CanSchedule = !closed
			tl.Visits = append(tl.Visits, visit)
			continue
		}

		visit.Stages = make([]StageState, 0, len(Stages))
		for i, stage := range Stages {
			state := StageState{Stage: stage, Label: stage.Label(), Index: i}
			if at, ok := rec[number][stage]; ok {
				at := at
				state.Completed = true
				state.RecordedAt = &at
			}
			state.Current = !visit.Completed && i == visit.CurrentStageIndex
			state.Clickable = !closed && !visit.Completed && !state.Completed && i == visit.CurrentStageIndex
			visit.Stages = append(visit.Stages, state)
		}
		visit.CanRequestRevisit = !closed && !visit.Completed && number == currentVisit &&
			visit.CurrentStageIndex == StageCompleted.Index() && RevisitAvailable(currentVisit)
		tl.Visits = append(tl.Visits, visit)
	}

	return tl
}

// Visit returns the derived state of one visit.
func (t Timeline) Visit(number int) (Visit, bool) {
	for _, v := range t.Visits {
		if v.Number == number {
			return v, true
		}
	}
	return Visit{}, false
}

var (
	ErrTicketClosed    = errors.New("ticket is closed")
	ErrVisitLocked     = errors.New("visit has not been scheduled")
	ErrVisitCompleted  = errors.New("visit is already completed")
	ErrStageRecorded   = errors.New("stage already recorded for this visit")
	ErrStageOutOfOrder = errors.New("stage is not the current stage of the visit")
	ErrUnknownVisit    = errors.New("visit does not exist")
	ErrRevisitLimit    = errors.New("maximum number of visits reached")
)

// CheckSubmission validates recording stage for visitNumber against the
// same rules that decide clickability.
func CheckSubmission(in Input, visitNumber int, stage Stage) error {
	if stage.Index() < 0 {
		return fmt.Errorf("unknown activity type %q", stage)
	}
	if in.TicketStatus == status.Closed {
		return ErrTicketClosed
	}
	tl := Derive(in)
	visit, ok := tl.Visit(visitNumber)
	if !ok {
		return ErrUnknownVisit
	}
	if visit.Locked {
		return ErrVisitLocked
	}
	if visit.Completed {
		return ErrVisitCompleted
	}
	st := visit.Stages[stage.Index()]
	if st.Completed {
		return ErrStageRecorded
	}
	if !st.Clickable {
		return ErrStageOutOfOrder
	}
	return nil
}

// CheckRevisit validates a revisit request for the current visit: it is only
// reachable while the completion stage is the current one.
func CheckRevisit(in Input) error {
	if in.TicketStatus == status.Closed {
		return ErrTicketClosed
	}
	if !RevisitAvailable(in.CurrentVisit) {
		return ErrRevisitLimit
	}
	tl := Derive(in)
	visit, ok := tl.Visit(tl.CurrentVisit)
	if !ok {
		return ErrUnknownVisit
	}
	if visit.Locked {
		return ErrVisitLocked
	}
	if visit.Completed {
		return ErrVisitCompleted
	}
	if visit.CurrentStageIndex != StageCompleted.Index() {
		return ErrStageOutOfOrder
	}
	return nil
}
