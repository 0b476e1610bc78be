package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/goalsmith/goalsmith/internal/adapters/handler/http/middleware"
	"github.com/goalsmith/goalsmith/internal/core/domain"
	"github.com/goalsmith/goalsmith/internal/core/services"
)

type GoalHandler struct {
	intake    *services.IntakeService
	lifecycle *services.LifecycleService
	windows   *services.WindowService
}

func NewGoalHandler(intake *services.IntakeService, lifecycle *services.LifecycleService, windows *services.WindowService) *GoalHandler {
	return &GoalHandler{
		intake:    intake,
		lifecycle: lifecycle,
		windows:   windows,
	}
}

type intakeRequest struct {
	Text        string `json:"text" binding:"required"`
	DisplayName string `json:"display_name"`
}

type actionRequest struct {
	Action string `json:"action" binding:"required"`
}

type adjustRequest struct {
	Field     string `json:"field" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (h *GoalHandler) RegisterRoutes(router *gin.RouterGroup) {
	goals := router.Group("/goals")
	{
		goals.POST("/intake", h.Intake)
		goals.GET("", h.ListPending)
		goals.GET("/window/:window", h.Window)
		goals.GET("/upcoming", h.Upcoming)
		goals.GET("/:id", h.Get)
		goals.POST("/:id/action", h.Action)
		goals.POST("/:id/adjust", h.Adjust)
	}
}

// Intake godoc
// @Summary Turn free text into a valued goal draft
// @Tags goals
// @Router /goals/intake [post]
func (h *GoalHandler) Intake(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	var req intakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.intake.Intake(c.Request.Context(), owner, req.DisplayName, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *GoalHandler) ListPending(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	goals, err := h.lifecycle.ListPending(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, goals)
}

func (h *GoalHandler) Get(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
		return
	}

	goal, err := h.lifecycle.Get(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, goal)
}

// Window godoc
// @Summary Classify pending goals into a named time window
// @Tags goals
// @Router /goals/window/{window} [get]
func (h *GoalHandler) Window(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	report, err := h.windows.Query(c.Request.Context(), owner, services.Window(c.Param("window")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *GoalHandler) Upcoming(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	hours, err := strconv.Atoi(c.DefaultQuery("hours", "6"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours parameter"})
		return
	}

	report, err := h.windows.QueryHoursAhead(c.Request.Context(), owner, hours)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Action godoc
// @Summary Apply a lifecycle action (accept, reject, done, failed, postpone, pause, resume, cancel)
// @Tags goals
// @Router /goals/{id}/action [post]
func (h *GoalHandler) Action(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	goal, err := h.lifecycle.Act(c.Request.Context(), owner, id, domain.Action(req.Action))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, goal)
}

func (h *GoalHandler) Adjust(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value, err := h.lifecycle.Adjust(c.Request.Context(), owner, id,
		domain.AdjustField(req.Field), domain.AdjustDirection(req.Direction))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"field": req.Field, "value": value})
}

func respondError(c *gin.Context, err error) {
	var vErr *domain.ValidationError
	var tErr *domain.TransitionError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "violations": vErr.Violations})
	case errors.As(err, &tErr):
		c.JSON(http.StatusConflict, gin.H{"error": tErr.Error()})
	case errors.Is(err, domain.ErrGoalNotFound),
		errors.Is(err, domain.ErrReminderNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownWindow),
		errors.Is(err, services.ErrUnknownPeriod),
		errors.Is(err, domain.ErrUnknownAdjustField),
		errors.Is(err, domain.ErrUnknownAdjustTarget),
		errors.Is(err, domain.ErrFactorOutOfRange),
		errors.Is(err, domain.ErrUnknownPenaltyTier),
		errors.Is(err, domain.ErrReminderTextEmpty),
		errors.Is(err, domain.ErrReminderTimeInPast):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
