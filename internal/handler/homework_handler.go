package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/service"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// HomeworkHandler exposes homework and announcement endpoints.
type HomeworkHandler struct {
	homework *service.HomeworkService
}

// NewHomeworkHandler constructs HomeworkHandler.
func NewHomeworkHandler(homework *service.HomeworkService) *HomeworkHandler {
	return &HomeworkHandler{homework: homework}
}

// ListHomework godoc
// @Summary List homework assignments
// @Tags Homework
// @Produce json
// @Param divisionId query string false "Filter by division"
// @Success 200 {object} response.Envelope
// @Router /homework [get]
func (h *HomeworkHandler) ListHomework(c *gin.Context) {
	items, err := h.homework.ListHomework(c.Request.Context(), tuitionFromContext(c), c.Query("divisionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateHomework posts an assignment.
func (h *HomeworkHandler) CreateHomework(c *gin.Context) {
	var req service.CreateHomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid homework payload"))
		return
	}
	var facultyID *string
	if claims := claimsFromContext(c); claims != nil {
		facultyID = &claims.UserID
	}
	hw, err := h.homework.CreateHomework(c.Request.Context(), tuitionFromContext(c), facultyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, hw)
}

// UpdateHomework edits an assignment.
func (h *HomeworkHandler) UpdateHomework(c *gin.Context) {
	var req service.CreateHomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid homework payload"))
		return
	}
	hw, err := h.homework.UpdateHomework(c.Request.Context(), tuitionFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hw, nil)
}

// DeleteHomework removes an assignment.
func (h *HomeworkHandler) DeleteHomework(c *gin.Context) {
	if err := h.homework.DeleteHomework(c.Request.Context(), tuitionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAnnouncements godoc
// @Summary List unexpired announcements
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *HomeworkHandler) ListAnnouncements(c *gin.Context) {
	items, err := h.homework.ListAnnouncements(c.Request.Context(), tuitionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateAnnouncement posts a broadcast and fans it out to push subscribers.
func (h *HomeworkHandler) CreateAnnouncement(c *gin.Context) {
	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}
	var postedBy *string
	if claims := claimsFromContext(c); claims != nil {
		postedBy = &claims.UserID
	}
	ann, err := h.homework.CreateAnnouncement(c.Request.Context(), tuitionFromContext(c), postedBy, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ann)
}

// DeleteAnnouncement removes a broadcast.
func (h *HomeworkHandler) DeleteAnnouncement(c *gin.Context) {
	if err := h.homework.DeleteAnnouncement(c.Request.Context(), tuitionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
