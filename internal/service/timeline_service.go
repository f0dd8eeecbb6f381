package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"field-ticket-service/internal/events"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/status"
	"field-ticket-service/internal/timeline"
	"field-ticket-service/internal/upload"
)

type TimelineService struct {
	stores    Stores
	processor *upload.Processor
	log       zerolog.Logger
	now       func() time.Time
}

func NewTimelineService(stores Stores, processor *upload.Processor, log zerolog.Logger) *TimelineService {
	if stores.Events == nil {
		stores.Events = events.Nop{}
	}
	return &TimelineService{
		stores:    stores,
		processor: processor,
		log:       log.With().Str("component", "timeline").Logger(),
		now:       time.Now,
	}
}

type timelineState struct {
	input      timeline.Input
	activities []model.Activity
	visits     map[int]*model.VisitSchedule
}

func loadTimelineState(ctx context.Context, stores Stores, ticket *model.Ticket) (*timelineState, error) {
	activities, err := stores.Activities.ListByTicketID(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	visits, err := stores.Visits.ListByTicketID(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	state := &timelineState{
		activities: activities,
		visits:     make(map[int]*model.VisitSchedule, len(visits)),
		input: timeline.Input{
			TicketStatus: ticket.Status,
			CurrentVisit: ticket.CurrentVisit,
			Activities:   make([]timeline.Activity, 0, len(activities)),
			Schedules:    make(map[int]timeline.Schedule, len(visits)),
		},
	}
	for _, a := range activities {
		state.input.Activities = append(state.input.Activities, timeline.Activity{
			VisitNumber: a.VisitNumber,
			Type:        a.ActivityType,
			At:          a.ActivityTime,
		})
	}
	for i := range visits {
		v := &visits[i]
		state.visits[v.VisitNumber] = v
		state.input.Schedules[v.VisitNumber] = timeline.Schedule{Status: v.Status, Schedule: v.Schedule, Reason: v.Reason}
	}
	return state, nil
}

// setVisitStatus creates or updates the schedule row for a visit.
func setVisitStatus(ctx context.Context, stores Stores, state *timelineState, ticketID uuid.UUID, visitNumber int, visitStatus timeline.VisitStatus, mutate func(*model.VisitSchedule)) error {
	visit, ok := state.visits[visitNumber]
	if !ok {
		visit = &model.VisitSchedule{TicketID: ticketID, VisitNumber: visitNumber, Status: visitStatus}
		if mutate != nil {
			mutate(visit)
		}
		if err := stores.Visits.Create(ctx, visit); err != nil {
			return err
		}
		state.visits[visitNumber] = visit
		return nil
	}
	visit.Status = visitStatus
	if mutate != nil {
		mutate(visit)
	}
	return stores.Visits.Update(ctx, visit)
}

func timelineError(err error) error {
	switch {
	case errors.Is(err, timeline.ErrUnknownVisit):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, timeline.ErrStageOutOfOrder),
		errors.Is(err, timeline.ErrStageRecorded),
		errors.Is(err, timeline.ErrVisitLocked),
		errors.Is(err, timeline.ErrVisitCompleted),
		errors.Is(err, timeline.ErrTicketClosed),
		errors.Is(err, timeline.ErrRevisitLimit):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fieldError("activity_type", err.Error())
	}
}

func (s *TimelineService) Timeline(ctx context.Context, principal model.Principal, ticketID uuid.UUID) (timeline.Timeline, error) {
	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, ticketID)
	if err != nil {
		return timeline.Timeline{}, err
	}
	state, err := loadTimelineState(ctx, s.stores, ticket)
	if err != nil {
		return timeline.Timeline{}, err
	}
	return timeline.Derive(state.input), nil
}

type ActivityInput struct {
	// VisitNumber 0 means the ticket's current visit.
	VisitNumber  int
	ActivityType string
	Title        string
	Description  string
	ActivityTime *time.Time
	Files        []upload.File
}

type ActivityResult struct {
	Activity   *model.Activity    `json:"activity"`
	Rejections []upload.Rejection `json:"rejections"`
	Timeline   timeline.Timeline  `json:"timeline"`
}

// RecordActivity records the next stage of a visit. The completion stage
// goes through Complete instead.
func (s *TimelineService) RecordActivity(ctx context.Context, principal model.Principal, ticketID uuid.UUID, input ActivityInput) (*ActivityResult, error) {
	stage, err := timeline.ParseStage(input.ActivityType)
	if err != nil {
		return nil, fieldError("activity_type", err.Error())
	}
	if stage == timeline.StageCompleted {
		return nil, fieldError("activity_type", "use the complete action to finish a visit")
	}

	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !canWorkTicket(principal, ticket) {
		return nil, ErrPermissionDenied
	}

	state, err := loadTimelineState(ctx, s.stores, ticket)
	if err != nil {
		return nil, err
	}
	visitNumber := input.VisitNumber
	if visitNumber == 0 {
		visitNumber = ticket.CurrentVisit
	}
	if err := timeline.CheckSubmission(state.input, visitNumber, stage); err != nil {
		return nil, timelineError(err)
	}

	pending, rejections := s.process(input.Files)
	defer s.release(pending)

	activity := &model.Activity{
		TicketID:     ticket.ID,
		VisitNumber:  visitNumber,
		ActivityType: stage,
		Title:        titleOr(input.Title, stage.Label()),
		Description:  input.Description,
		ActivityTime: s.activityTime(input.ActivityTime),
		UserID:       principal.UserID,
	}

	now := s.now()
	var saved []string
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Activities.Create(ctx, activity); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %w", ErrConflict, timeline.ErrStageRecorded)
			}
			return err
		}
		attachments, err := s.commit(ctx, pending, ticket.ID, &activity.ID, model.AttachmentKindActivity, principal.UserID, &saved)
		if err != nil {
			return err
		}
		activity.Attachments = attachments

		if timeline.VisitStatusOf(visitNumber, state.input.Schedules) != timeline.VisitInProgress {
			if err := setVisitStatus(ctx, s.stores, state, ticket.ID, visitNumber, timeline.VisitInProgress, nil); err != nil {
				return err
			}
		}
		if ticket.Status == status.Open || ticket.Status == status.NeedToReceive {
			note := fmt.Sprintf("Visit %d: %s", visitNumber, stage.Label())
			return setStatus(ctx, s.stores, ticket, status.InProgress, principal.UserID, note, now)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}
	s.settle(saved)

	s.stores.Events.Publish(ctx, events.Event{
		Type:     events.ActivityRecorded,
		TicketID: ticket.ID,
		ActorID:  principal.UserID,
		Payload:  map[string]any{"visit_number": visitNumber, "activity_type": stage},
	})

	return s.result(ctx, ticket, activity, rejections)
}

type CompleteInput struct {
	CompletionNotes string
	ActivityTime    *time.Time
	Files           []upload.File
}

// Complete records the completion stage of the current visit, closes the
// visit and moves the ticket to Finish.
func (s *TimelineService) Complete(ctx context.Context, principal model.Principal, ticketID uuid.UUID, input CompleteInput) (*ActivityResult, error) {
	if len(input.Files) > upload.MaxCompletionFiles {
		return nil, fieldError("files", fmt.Sprintf("at most %d files can be attached", upload.MaxCompletionFiles))
	}
	notes := strings.TrimSpace(input.CompletionNotes)
	if notes == "" {
		return nil, fieldError("completion_notes", "completion notes are required")
	}

	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !canWorkTicket(principal, ticket) {
		return nil, ErrPermissionDenied
	}
	state, err := loadTimelineState(ctx, s.stores, ticket)
	if err != nil {
		return nil, err
	}
	visitNumber := ticket.CurrentVisit
	if err := timeline.CheckSubmission(state.input, visitNumber, timeline.StageCompleted); err != nil {
		return nil, timelineError(err)
	}

	pending, rejections := s.process(input.Files)
	defer s.release(pending)

	activity := &model.Activity{
		TicketID:     ticket.ID,
		VisitNumber:  visitNumber,
		ActivityType: timeline.StageCompleted,
		Title:        timeline.StageCompleted.Label(),
		Description:  notes,
		ActivityTime: s.activityTime(input.ActivityTime),
		UserID:       principal.UserID,
	}

	now := s.now()
	var saved []string
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Activities.Create(ctx, activity); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %w", ErrConflict, timeline.ErrStageRecorded)
			}
			return err
		}
		attachments, err := s.commit(ctx, pending, ticket.ID, &activity.ID, model.AttachmentKindCompletion, principal.UserID, &saved)
		if err != nil {
			return err
		}
		activity.Attachments = attachments

		if err := setVisitStatus(ctx, s.stores, state, ticket.ID, visitNumber, timeline.VisitCompleted, nil); err != nil {
			return err
		}
		ticket.CompletionNotes = notes
		ticket.CompletedAt = &now
		if ticket.Status == status.Finish {
			return s.stores.Tickets.Update(ctx, ticket)
		}
		return setStatus(ctx, s.stores, ticket, status.Finish, principal.UserID, fmt.Sprintf("Visit %d completed", visitNumber), now)
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}
	s.settle(saved)

	s.stores.Events.Publish(ctx, events.Event{
		Type:     events.TicketCompleted,
		TicketID: ticket.ID,
		ActorID:  principal.UserID,
		Payload:  map[string]any{"visit_number": visitNumber, "attachments": len(activity.Attachments)},
	})
	s.log.Info().Str("ticket_id", ticket.ID.String()).Int("visit", visitNumber).Msg("ticket completed")

	return s.result(ctx, ticket, activity, rejections)
}

// RequestRevisit closes the current visit and opens the next one in
// pending_schedule. Only offered while the completion stage is current.
func (s *TimelineService) RequestRevisit(ctx context.Context, principal model.Principal, ticketID uuid.UUID, reason string) (timeline.Timeline, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return timeline.Timeline{}, fieldError("reason", "reason is required")
	}

	ticket, err := loadVisible(ctx, s.stores.Tickets, principal, ticketID)
	if err != nil {
		return timeline.Timeline{}, err
	}
	if !canWorkTicket(principal, ticket) {
		return timeline.Timeline{}, ErrPermissionDenied
	}
	state, err := loadTimelineState(ctx, s.stores, ticket)
	if err != nil {
		return timeline.Timeline{}, err
	}
	if err := timeline.CheckRevisit(state.input); err != nil {
		return timeline.Timeline{}, timelineError(err)
	}

	closing := ticket.CurrentVisit
	next := closing + 1
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := setVisitStatus(ctx, s.stores, state, ticket.ID, closing, timeline.VisitCompleted, nil); err != nil {
			return err
		}
		if err := setVisitStatus(ctx, s.stores, state, ticket.ID, next, timeline.VisitPendingSchedule, func(v *model.VisitSchedule) {
			v.Reason = reason
			v.Schedule = nil
		}); err != nil {
			return err
		}
		ticket.CurrentVisit = next
		return s.stores.Tickets.Update(ctx, ticket)
	})
	if err != nil {
		return timeline.Timeline{}, err
	}

	s.stores.Events.Publish(ctx, events.Event{
		Type:     events.VisitRevisitRequested,
		TicketID: ticket.ID,
		ActorID:  principal.UserID,
		Payload:  map[string]any{"visit_number": next, "reason": reason},
	})
	return s.Timeline(ctx, principal, ticket.ID)
}

// ScheduleVisit unlocks a pending visit by giving it a date. Admin only.
func (s *TimelineService) ScheduleVisit(ctx context.Context, principal model.Principal, ticketID uuid.UUID, visitNumber int, schedule time.Time) (timeline.Timeline, error) {
	if !principal.IsAdmin() {
		return timeline.Timeline{}, ErrPermissionDenied
	}
	if visitNumber < 1 || visitNumber > timeline.MaxVisits {
		return timeline.Timeline{}, fieldError("visit_number", fmt.Sprintf("visit number must be between 1 and %d", timeline.MaxVisits))
	}
	if schedule.IsZero() {
		return timeline.Timeline{}, fieldError("schedule", "schedule is required")
	}

	ticket, err := loadTicket(ctx, s.stores.Tickets, ticketID)
	if err != nil {
		return timeline.Timeline{}, err
	}
	if ticket.Status == status.Closed {
		return timeline.Timeline{}, fmt.Errorf("%w: %w", ErrConflict, timeline.ErrTicketClosed)
	}
	state, err := loadTimelineState(ctx, s.stores, ticket)
	if err != nil {
		return timeline.Timeline{}, err
	}
	if visitNumber > timeline.TotalVisits(ticket.CurrentVisit, state.input.Schedules) {
		return timeline.Timeline{}, fmt.Errorf("%w: %w", ErrNotFound, timeline.ErrUnknownVisit)
	}
	switch timeline.VisitStatusOf(visitNumber, state.input.Schedules) {
	case timeline.VisitPendingSchedule, timeline.VisitScheduled:
	default:
		return timeline.Timeline{}, fmt.Errorf("%w: visit %d is already under way", ErrConflict, visitNumber)
	}

	actor := principal.UserID
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := setVisitStatus(ctx, s.stores, state, ticket.ID, visitNumber, timeline.VisitScheduled, func(v *model.VisitSchedule) {
			v.Schedule = &schedule
			v.ScheduledBy = &actor
		}); err != nil {
			return err
		}
		if visitNumber == ticket.CurrentVisit {
			ticket.Schedule = &schedule
			return s.stores.Tickets.Update(ctx, ticket)
		}
		return nil
	})
	if err != nil {
		return timeline.Timeline{}, err
	}

	s.stores.Events.Publish(ctx, events.Event{
		Type:     events.VisitScheduled,
		TicketID: ticket.ID,
		ActorID:  principal.UserID,
		Payload:  map[string]any{"visit_number": visitNumber, "schedule": schedule},
	})
	return s.Timeline(ctx, principal, ticket.ID)
}

func (s *TimelineService) process(files []upload.File) (*upload.PendingSet, []upload.Rejection) {
	if len(files) == 0 || s.processor == nil {
		return &upload.PendingSet{}, nil
	}
	return s.processor.Process(files)
}

func (s *TimelineService) release(pending *upload.PendingSet) {
	if err := pending.Close(); err != nil {
		s.log.Warn().Err(err).Msg("release upload previews")
	}
}

// commit stores every accepted file and records it as an attachment. Every
// stored path is appended to saved and must be settled once the
// transaction ends.
func (s *TimelineService) commit(ctx context.Context, pending *upload.PendingSet, ticketID uuid.UUID, activityID *uuid.UUID, kind model.AttachmentKind, actor uuid.UUID, saved *[]string) ([]model.Attachment, error) {
	items := pending.Items()
	attachments := make([]model.Attachment, 0, len(items))
	for _, item := range items {
		data, err := item.Data()
		if err != nil {
			return nil, fmt.Errorf("read staged %s: %w", item.Original.Name, err)
		}
		stored, err := s.stores.Files.Save(ctx, item.Name, data)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", item.Original.Name, err)
		}
		*saved = append(*saved, stored.Path)
		attachment := model.Attachment{
			TicketID:     ticketID,
			ActivityID:   activityID,
			Kind:         kind,
			OriginalName: item.Original.Name,
			ContentType:  item.ContentType,
			Size:         stored.Size,
			Digest:       stored.Digest,
			Path:         stored.Path,
			URL:          stored.URL,
			UploadedBy:   actor,
		}
		if err := s.stores.Attachments.Create(ctx, &attachment); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, nil
}

func (s *TimelineService) settle(paths []string) {
	for _, p := range paths {
		s.stores.Files.Release(p)
	}
}

// discard drops files saved by a transaction that rolled back, unless a
// committed attachment or another in-flight save still uses them.
func (s *TimelineService) discard(ctx context.Context, paths []string) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range paths {
		_, err := s.stores.Files.Discard(p, func() (bool, error) {
			return s.stores.Attachments.PathReferenced(ctx, p)
		})
		if err != nil {
			s.log.Warn().Err(err).Str("path", p).Msg("remove orphaned attachment")
		}
	}
}

func (s *TimelineService) result(ctx context.Context, ticket *model.Ticket, activity *model.Activity, rejections []upload.Rejection) (*ActivityResult, error) {
	state, err := loadTimelineState(ctx, s.stores, ticket)
	if err != nil {
		return nil, err
	}
	if rejections == nil {
		rejections = []upload.Rejection{}
	}
	return &ActivityResult{Activity: activity, Rejections: rejections, Timeline: timeline.Derive(state.input)}, nil
}

func (s *TimelineService) activityTime(at *time.Time) time.Time {
	if at == nil || at.IsZero() {
		return s.now()
	}
	return *at
}

func titleOr(title, fallback string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return fallback
}
