package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goalsmith/goalsmith/internal/adapters/handler/http/middleware"
	"github.com/goalsmith/goalsmith/internal/core/services"
)

type StatsHandler struct {
	svc *services.StatsService
}

func NewStatsHandler(svc *services.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) RegisterRoutes(router *gin.RouterGroup) {
	stats := router.Group("/stats")
	{
		stats.GET("/trend", h.Trend)
		stats.GET("/:period", h.Period)
	}
}

func (h *StatsHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.POST("/snapshots/run", h.RunSnapshots)
}

// Period godoc
// @Summary Sum the snapshot ledger over a trailing period (week, month, quarter, year)
// @Tags stats
// @Router /stats/{period} [get]
func (h *StatsHandler) Period(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	stats, err := h.svc.Aggregate(c.Request.Context(), owner, services.Period(c.Param("period")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *StatsHandler) Trend(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	report, err := h.svc.Trend(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// RunSnapshots re-runs the daily snapshot job. Safe to call any number
// of times: existing (owner, day) rows are left alone.
func (h *StatsHandler) RunSnapshots(c *gin.Context) {
	written, err := h.svc.RunDailySnapshots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"written": written})
}
