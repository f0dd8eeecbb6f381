package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"field-ticket-service/internal/status"
	"field-ticket-service/internal/timeline"
	"field-ticket-service/internal/upload"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.services.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) me(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	user, err := h.services.Users.Me(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(user))
}

func (h *Handler) listEngineers(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	engineers, err := h.services.Users.Engineers(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(engineers))
}

type priorityDescriptor struct {
	Value status.Priority `json:"value"`
	status.Style
}

type stageDescriptor struct {
	Value timeline.Stage `json:"value"`
	Label string         `json:"label"`
	Index int            `json:"index"`
}

// vocabulary serves the labels and limits clients render with.
func (h *Handler) vocabulary(c *gin.Context) {
	priorities := make([]priorityDescriptor, 0, len(status.Priorities))
	for _, p := range status.Priorities {
		priorities = append(priorities, priorityDescriptor{Value: p, Style: status.PriorityStyleFor(string(p))})
	}
	stages := make([]stageDescriptor, 0, len(timeline.Stages))
	for i, s := range timeline.Stages {
		stages = append(stages, stageDescriptor{Value: s, Label: s.Label(), Index: i})
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"statuses":             status.Describe(),
		"fallback_style":       status.FallbackStyle,
		"priorities":           priorities,
		"stages":               stages,
		"max_visits":           timeline.MaxVisits,
		"max_completion_files": upload.MaxCompletionFiles,
	}))
}
