package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/service"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// PushHandler exposes web-push subscription endpoints.
type PushHandler struct {
	notifications *service.NotificationService
}

// NewPushHandler constructs PushHandler.
func NewPushHandler(notifications *service.NotificationService) *PushHandler {
	return &PushHandler{notifications: notifications}
}

// Subscribe godoc
// @Summary Register a browser push subscription
// @Tags Push
// @Accept json
// @Param payload body service.SubscribeRequest true "Subscription payload"
// @Success 201 {object} response.Envelope
// @Router /push/subscriptions [post]
func (h *PushHandler) Subscribe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subscription payload"))
		return
	}
	if err := h.notifications.Subscribe(c.Request.Context(), tuitionFromContext(c), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"subscribed": true})
}

// Unsubscribe godoc
// @Summary Remove a push subscription by id
// @Tags Push
// @Param id path string true "Subscription ID"
// @Success 204 {object} response.Envelope
// @Router /push/subscriptions/{id} [delete]
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id := c.Param("id")
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subscription id is required"))
		return
	}
	if err := h.notifications.Unsubscribe(c.Request.Context(), tuitionFromContext(c), claims.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
