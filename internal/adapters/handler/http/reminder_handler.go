package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goalsmith/goalsmith/internal/adapters/handler/http/middleware"
	"github.com/goalsmith/goalsmith/internal/core/domain"
)

type ReminderHandler struct {
	reminders domain.ReminderRepository
	clock     domain.Clock
}

func NewReminderHandler(reminders domain.ReminderRepository, clock domain.Clock) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, clock: clock}
}

type createReminderRequest struct {
	Text string    `json:"reminder_text" binding:"required"`
	Time time.Time `json:"time" binding:"required"`
}

func (h *ReminderHandler) RegisterRoutes(router *gin.RouterGroup) {
	reminders := router.Group("/reminders")
	{
		reminders.POST("", h.Create)
		reminders.GET("", h.List)
		reminders.DELETE("/:id", h.Delete)
	}
}

func (h *ReminderHandler) Create(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reminder, err := domain.NewReminder(owner, req.Text, req.Time, h.clock.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.reminders.Create(c.Request.Context(), reminder); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reminder)
}

func (h *ReminderHandler) List(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	reminders, err := h.reminders.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reminders)
}

func (h *ReminderHandler) Delete(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	if err := h.reminders.Delete(c.Request.Context(), c.Param("id"), owner); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
