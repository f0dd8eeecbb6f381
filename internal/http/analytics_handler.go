package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"field-ticket-service/internal/analytics"
	"field-ticket-service/internal/service"
)

func (h *Handler) analyticsFilter(c *gin.Context) (analytics.Filter, bool) {
	f, err := analytics.ParseFilter(c.Request.URL.Query(), h.now())
	if err != nil {
		h.handleError(c, service.NewValidationErrorFor("filter", err.Error()))
		return analytics.Filter{}, false
	}
	return f, true
}

// serveAnalytics runs one document query for the request's filter.
func serveAnalytics[T any](h *Handler, c *gin.Context, fetch func(context.Context, analytics.Filter) (T, error)) {
	f, ok := h.analyticsFilter(c)
	if !ok {
		return
	}
	doc, err := fetch(c.Request.Context(), f)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": doc, "filter": f})
}

func (h *Handler) analyticsOverview(c *gin.Context) {
	serveAnalytics(h, c, h.services.Analytics.Overview)
}

func (h *Handler) analyticsTrends(c *gin.Context) {
	serveAnalytics(h, c, h.services.Analytics.Trends)
}

func (h *Handler) analyticsPerformance(c *gin.Context) {
	serveAnalytics(h, c, h.services.Analytics.Performance)
}

func (h *Handler) analyticsEngineers(c *gin.Context) {
	serveAnalytics(h, c, h.services.Analytics.Engineers)
}

func (h *Handler) analyticsParts(c *gin.Context) {
	serveAnalytics(h, c, h.services.Analytics.Parts)
}

func (h *Handler) analyticsComparison(c *gin.Context) {
	serveAnalytics(h, c, h.services.Analytics.Comparison)
}

func (h *Handler) analyticsDashboard(c *gin.Context) {
	serveAnalytics(h, c, h.services.Analytics.Dashboard)
}

// analyticsRefresh recomputes the default dashboard; a refresh already in
// flight answers 429 instead of queueing.
func (h *Handler) analyticsRefresh(c *gin.Context) {
	dashboard, err := h.services.Refresher.Refresh(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	lastRun, _ := h.services.Refresher.LastRun()
	c.JSON(http.StatusOK, gin.H{"data": dashboard, "refreshed_at": lastRun})
}
