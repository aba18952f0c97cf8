package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/service"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// GamificationHandler exposes streak, leaderboard, challenge and badge endpoints.
type GamificationHandler struct {
	gamification *service.GamificationService
}

// NewGamificationHandler constructs GamificationHandler.
func NewGamificationHandler(gamification *service.GamificationService) *GamificationHandler {
	return &GamificationHandler{gamification: gamification}
}

// Leaderboard godoc
// @Summary Ranked leaderboard of streaks, badges and points
// @Tags Gamification
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leaderboard [get]
func (h *GamificationHandler) Leaderboard(c *gin.Context) {
	entries, err := h.gamification.Leaderboard(c.Request.Context(), tuitionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Streak godoc
// @Summary Attendance streak for a student
// @Tags Gamification
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/streak [get]
func (h *GamificationHandler) Streak(c *gin.Context) {
	info, err := h.gamification.Streak(c.Request.Context(), tuitionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// ListChallenges returns challenges, optionally active only.
func (h *GamificationHandler) ListChallenges(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	challenges, err := h.gamification.ListChallenges(c.Request.Context(), tuitionFromContext(c), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenges, nil)
}

// CreateChallenge adds a challenge.
func (h *GamificationHandler) CreateChallenge(c *gin.Context) {
	var req service.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid challenge payload"))
		return
	}
	challenge, err := h.gamification.CreateChallenge(c.Request.Context(), tuitionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, challenge)
}

// CompleteChallenge records a student finishing a challenge.
func (h *GamificationHandler) CompleteChallenge(c *gin.Context) {
	var body struct {
		StudentID string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	if err := h.gamification.CompleteChallenge(c.Request.Context(), tuitionFromContext(c), c.Param("id"), body.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBadges returns the badge catalogue.
func (h *GamificationHandler) ListBadges(c *gin.Context) {
	badges, err := h.gamification.ListBadges(c.Request.Context(), tuitionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badges, nil)
}

// CreateBadge adds a badge to the catalogue.
func (h *GamificationHandler) CreateBadge(c *gin.Context) {
	var req service.BadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid badge payload"))
		return
	}
	badge, err := h.gamification.CreateBadge(c.Request.Context(), tuitionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, badge)
}

// AwardBadge grants a badge to a student.
func (h *GamificationHandler) AwardBadge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var body struct {
		StudentID string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	if err := h.gamification.AwardBadge(c.Request.Context(), tuitionFromContext(c), c.Param("id"), body.StudentID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RevokeBadge withdraws a badge from a student.
func (h *GamificationHandler) RevokeBadge(c *gin.Context) {
	var body struct {
		StudentID string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	if err := h.gamification.RevokeBadge(c.Request.Context(), tuitionFromContext(c), c.Param("id"), body.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentBadges lists badges awarded to one student.
func (h *GamificationHandler) StudentBadges(c *gin.Context) {
	badges, err := h.gamification.StudentBadges(c.Request.Context(), tuitionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badges, nil)
}
