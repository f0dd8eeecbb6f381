package http

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"field-ticket-service/internal/service"
	"field-ticket-service/internal/upload"
)

const uploadField = "files"

func (h *Handler) timeline(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	tl, err := h.services.Timeline.Timeline(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(tl))
}

type activityRequest struct {
	VisitNumber  int    `form:"visit_number" json:"visit_number" binding:"omitempty,min=1,max=3"`
	ActivityType string `form:"activity_type" json:"activity_type" binding:"required"`
	Title        string `form:"title" json:"title" binding:"max=255"`
	Description  string `form:"description" json:"description"`
	ActivityTime string `form:"activity_time" json:"activity_time"`
}

// recordActivity accepts JSON or a multipart form carrying "files".
func (h *Handler) recordActivity(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req activityRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}
	verr := service.NewValidationError()
	activityTime := parseOptionalTime(verr, "activity_time", req.ActivityTime)
	if err := verr.OrNil(); err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.services.Timeline.RecordActivity(c.Request.Context(), principal, id, service.ActivityInput{
		VisitNumber:  req.VisitNumber,
		ActivityType: strings.TrimSpace(req.ActivityType),
		Title:        req.Title,
		Description:  req.Description,
		ActivityTime: activityTime,
		Files:        uploadedFiles(c),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

type completeRequest struct {
	CompletionNotes string `form:"completion_notes" json:"completion_notes" binding:"required"`
	ActivityTime    string `form:"activity_time" json:"activity_time"`
}

func (h *Handler) complete(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req completeRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}
	verr := service.NewValidationError()
	activityTime := parseOptionalTime(verr, "activity_time", req.ActivityTime)
	if err := verr.OrNil(); err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.services.Timeline.Complete(c.Request.Context(), principal, id, service.CompleteInput{
		CompletionNotes: req.CompletionNotes,
		ActivityTime:    activityTime,
		Files:           uploadedFiles(c),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

type revisitRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

func (h *Handler) revisit(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req revisitRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	tl, err := h.services.Timeline.RequestRevisit(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(tl))
}

type scheduleVisitRequest struct {
	Schedule string `json:"schedule" binding:"required"`
}

func (h *Handler) scheduleVisit(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}
	visitNumber, err := strconv.Atoi(c.Param("visitNumber"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid visit number"))
		return
	}

	var req scheduleVisitRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}
	schedule, err := parseTime(req.Schedule)
	if err != nil {
		h.handleError(c, service.NewValidationErrorFor("schedule", "schedule must be an RFC 3339 timestamp or YYYY-MM-DD"))
		return
	}

	tl, err := h.services.Timeline.ScheduleVisit(c.Request.Context(), principal, id, visitNumber, schedule)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(tl))
}

func (h *Handler) listAssignments(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	assignments, err := h.services.Assignments.List(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(assignments))
}

type assignmentRequest struct {
	EngineerID string `json:"engineer_id" binding:"required,uuid"`
	Notes      string `json:"notes" binding:"max=1000"`
}

func (h *Handler) createAssignment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req assignmentRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	ticket, err := h.services.Assignments.Assign(c.Request.Context(), principal, id, service.AssignInput{
		EngineerID: uuid.MustParse(req.EngineerID),
		Notes:      req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(ticket))
}

func (h *Handler) listParts(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	parts, err := h.services.Parts.List(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(parts))
}

type partRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) recordPart(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req partRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	part, err := h.services.Parts.Record(c.Request.Context(), principal, id, service.RecordPartInput{Name: req.Name, Quantity: req.Quantity})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(part))
}

// uploadedFiles returns the multipart files of the request, if any.
func uploadedFiles(c *gin.Context) []upload.File {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil
	}
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		headers = form.File[uploadField+"[]"]
	}
	return filesFrom(headers)
}

func filesFrom(headers []*multipart.FileHeader) []upload.File {
	files := make([]upload.File, 0, len(headers))
	for _, header := range headers {
		files = append(files, upload.FromMultipart(header))
	}
	return files
}
