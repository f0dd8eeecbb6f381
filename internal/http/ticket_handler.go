package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"field-ticket-service/internal/listview"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/service"
	"field-ticket-service/internal/status"
)

func (h *Handler) listTickets(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	params := service.ParseListParams(c.Request.URL.Query())
	if strings.EqualFold(c.Query("format"), "csv") {
		tickets, err := h.services.Bulk.Export(c.Request.Context(), principal, nil, params)
		if err != nil {
			h.handleError(c, err)
			return
		}
		h.writeCSV(c, tickets, c.Query("gzip") == "1")
		return
	}

	tickets, total, err := h.services.Tickets.List(c.Request.Context(), principal, params)
	if err != nil {
		h.handleError(c, err)
		return
	}

	page := listview.Page[model.Ticket]{
		Data: tickets,
		Meta: listview.BuildMeta(c.Request.URL, params.Page.Normalize(), total),
	}
	if raw, ok := c.GetQuery("selected"); ok {
		view := pageSelection(tickets, raw)
		page.Selection = &view
	}
	c.JSON(http.StatusOK, page)
}

// pageSelection resolves the "selected" query against the rows of the page:
// "all" selects every row, otherwise a comma separated id list.
func pageSelection(tickets []model.Ticket, raw string) listview.SelectionView {
	rows := make([]string, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, t.ID.String())
	}
	selection := listview.NewSelection(rows)
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		selection.ToggleAll()
		return selection.View()
	}
	for _, id := range strings.Split(raw, ",") {
		selection.Toggle(strings.TrimSpace(id))
	}
	return selection.View()
}

func (h *Handler) board(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	board, err := h.services.Tickets.Board(c.Request.Context(), principal, service.ParseListParams(c.Request.URL.Query()))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(board))
}

type ticketRequest struct {
	CaseID       string  `json:"case_id" binding:"max=100"`
	Company      string  `json:"company" binding:"required,max=255"`
	SerialNumber string  `json:"serial_number" binding:"max=100"`
	Problem      string  `json:"problem" binding:"required"`
	Priority     string  `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	Schedule     string  `json:"schedule"`
	Deadline     string  `json:"deadline"`
	AssignedTo   *string `json:"assigned_to" binding:"omitempty,uuid"`
	Notes        string  `json:"notes"`
}

func (h *Handler) createTicket(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req ticketRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	verr := service.NewValidationError()
	input := service.CreateTicketInput{
		CaseID:       req.CaseID,
		Company:      req.Company,
		SerialNumber: req.SerialNumber,
		Problem:      req.Problem,
		Priority:     req.Priority,
		Schedule:     parseOptionalTime(verr, "schedule", req.Schedule),
		Deadline:     parseOptionalTime(verr, "deadline", req.Deadline),
		Notes:        req.Notes,
	}
	if req.AssignedTo != nil {
		id := uuid.MustParse(*req.AssignedTo)
		input.AssignedTo = &id
	}
	if err := verr.OrNil(); err != nil {
		h.handleError(c, err)
		return
	}

	ticket, err := h.services.Tickets.Create(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(ticket))
}

func (h *Handler) getTicket(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	detail, err := h.services.Tickets.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(detail))
}

type updateTicketRequest struct {
	CaseID       *string `json:"case_id" binding:"omitempty,max=100"`
	Company      *string `json:"company" binding:"omitempty,max=255"`
	SerialNumber *string `json:"serial_number" binding:"omitempty,max=100"`
	Problem      *string `json:"problem"`
	Priority     *string `json:"priority"`
	Schedule     *string `json:"schedule"`
	Deadline     *string `json:"deadline"`
	Notes        *string `json:"notes"`
}

func (h *Handler) updateTicket(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req updateTicketRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	verr := service.NewValidationError()
	input := service.UpdateTicketInput{
		CaseID:       req.CaseID,
		Company:      req.Company,
		SerialNumber: req.SerialNumber,
		Problem:      req.Problem,
		Priority:     req.Priority,
		Notes:        req.Notes,
	}
	if req.Schedule != nil {
		input.Schedule = parseOptionalTime(verr, "schedule", *req.Schedule)
	}
	if req.Deadline != nil {
		input.Deadline = parseOptionalTime(verr, "deadline", *req.Deadline)
	}
	if err := verr.OrNil(); err != nil {
		h.handleError(c, err)
		return
	}

	ticket, err := h.services.Tickets.Update(c.Request.Context(), principal, id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(ticket))
}

func (h *Handler) deleteTicket(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	if err := h.services.Tickets.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"max=1000"`
}

// changeStatus serves both the status form and kanban drops; dropping a card
// on its own column reports changed=false.
func (h *Handler) changeStatus(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}
	target, err := status.Parse(req.Status)
	if err != nil {
		h.handleError(c, service.NewValidationErrorFor("status", err.Error()))
		return
	}

	ticket, changed, err := h.services.Tickets.Move(c.Request.Context(), principal, id, target, req.Notes)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ticket, "changed": changed})
}

func (h *Handler) history(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	history, err := h.services.Tickets.History(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(history))
}

type bulkRequest struct {
	Action     string   `json:"action" binding:"required,oneof=assign status delete export"`
	TicketIDs  []string `json:"ticket_ids" binding:"omitempty,max=100,dive,uuid"`
	EngineerID *string  `json:"engineer_id" binding:"omitempty,uuid"`
	Status     string   `json:"status"`
	Notes      string   `json:"notes" binding:"max=1000"`
	Gzip       bool     `json:"gzip"`
}

func (h *Handler) bulk(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req bulkRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(req.TicketIDs))
	for _, raw := range req.TicketIDs {
		ids = append(ids, uuid.MustParse(raw))
	}

	action := service.ParseBulkAction(req.Action)
	if action == "export" {
		if len(ids) == 0 {
			h.handleError(c, service.NewValidationErrorFor("ticket_ids", "select at least one ticket"))
			return
		}
		tickets, err := h.services.Bulk.Export(c.Request.Context(), principal, ids, service.ListParams{})
		if err != nil {
			h.handleError(c, err)
			return
		}
		h.writeCSV(c, tickets, req.Gzip)
		return
	}

	input := service.BulkInput{Action: action, TicketIDs: ids, Status: req.Status, Notes: req.Notes}
	if req.EngineerID != nil {
		id := uuid.MustParse(*req.EngineerID)
		input.EngineerID = &id
	}
	result, err := h.services.Bulk.Apply(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) writeCSV(c *gin.Context, tickets []model.Ticket, compress bool) {
	filename := fmt.Sprintf("tickets-%s.csv", h.now().Format("20060102-150405"))
	var w io.Writer = c.Writer
	if compress {
		filename += ".gz"
		c.Header("Content-Type", "application/gzip")
	} else {
		c.Header("Content-Type", "text/csv; charset=utf-8")
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if compress {
		gz := gzip.NewWriter(c.Writer)
		defer func() {
			if err := gz.Close(); err != nil {
				h.log.Warn().Err(err).Msg("close gzip export")
			}
		}()
		w = gz
	}
	if err := listview.WriteCSV(w, model.TicketCSVHeader, tickets); err != nil {
		h.log.Error().Err(err).Msg("write csv export")
	}
}
