package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/service"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// ReminderHandler exposes pending-class reminder endpoints.
type ReminderHandler struct {
	reminders *service.ReminderService
}

// NewReminderHandler constructs ReminderHandler.
func NewReminderHandler(reminders *service.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders}
}

// Pending godoc
// @Summary Classes near their end with no attendance marked
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reminders/pending [get]
func (h *ReminderHandler) Pending(c *gin.Context) {
	pending, err := h.reminders.Pending(c.Request.Context(), tuitionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Dismiss godoc
// @Summary Dismiss a pending reminder for the rest of the day
// @Tags Reminders
// @Param key path string true "Reminder key (entryID:date)"
// @Success 204 {object} response.Envelope
// @Router /reminders/{key}/dismiss [post]
func (h *ReminderHandler) Dismiss(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "reminder key is required"))
		return
	}
	if err := h.reminders.Dismiss(c.Request.Context(), tuitionFromContext(c), key); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
