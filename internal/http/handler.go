package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"field-ticket-service/internal/analytics"
	"field-ticket-service/internal/http/middleware"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/service"
)

// Services is everything the handlers call into.
type Services struct {
	Tickets     *service.TicketService
	Assignments *service.AssignmentService
	Timeline    *service.TimelineService
	Parts       *service.PartService
	Bulk        *service.BulkService
	Users       *service.UserService
	Analytics   *analytics.Service
	Refresher   *analytics.Refresher
}

type Handler struct {
	services Services
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		services: services,
		log:      log.With().Str("component", "http").Logger(),
		now:      time.Now,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.POST("/auth/login", h.login)

	protected := r.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/me", h.me)
	protected.GET("/users/engineers", h.listEngineers)
	protected.GET("/vocabulary", h.vocabulary)

	tickets := protected.Group("/tickets")
	{
		tickets.GET("", h.listTickets)
		tickets.POST("", h.createTicket)
		tickets.GET("/board", h.board)
		tickets.POST("/bulk", middleware.RequireRole(model.UserRoleAdmin), h.bulk)
		tickets.GET("/:id", h.getTicket)
		tickets.PUT("/:id", h.updateTicket)
		tickets.DELETE("/:id", h.deleteTicket)
		tickets.PATCH("/:id/status", h.changeStatus)
		tickets.GET("/:id/history", h.history)
		tickets.GET("/:id/assignments", h.listAssignments)
		tickets.POST("/:id/assignments", h.createAssignment)

		tickets.GET("/:id/timeline", h.timeline)
		tickets.POST("/:id/activities", h.recordActivity)
		tickets.POST("/:id/complete", h.complete)
		tickets.POST("/:id/revisit", h.revisit)
		tickets.POST("/:id/schedule-visit/:visitNumber", h.scheduleVisit)

		tickets.GET("/:id/parts", h.listParts)
		tickets.POST("/:id/parts", h.recordPart)
	}

	reports := protected.Group("/analytics")
	reports.Use(middleware.RequireRole(model.UserRoleAdmin))
	{
		reports.GET("/overview", h.analyticsOverview)
		reports.GET("/trends", h.analyticsTrends)
		reports.GET("/performance", h.analyticsPerformance)
		reports.GET("/engineers", h.analyticsEngineers)
		reports.GET("/parts", h.analyticsParts)
		reports.GET("/comparison", h.analyticsComparison)
		reports.GET("/dashboard", h.analyticsDashboard)
		reports.POST("/refresh", h.analyticsRefresh)
	}
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return model.Principal{}, false
	}
	return principal, true
}

func (h *Handler) ticketID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid ticket id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, errorResponse(err.Error()))
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrBusy), errors.Is(err, analytics.ErrBusy):
		c.JSON(http.StatusTooManyRequests, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.New("invalid time format")
}

// parseOptionalTime leaves the target nil for an empty value and records a
// field error for a malformed one.
func parseOptionalTime(verr *service.ValidationError, field, raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := parseTime(raw)
	if err != nil {
		verr.Add(field, field+" must be an RFC 3339 timestamp or YYYY-MM-DD")
		return nil
	}
	return &t
}
