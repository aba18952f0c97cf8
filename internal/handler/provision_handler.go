package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/models"
	"github.com/edunexa/tuition-api/internal/service"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// ProvisionHandler exposes account provisioning endpoints.
type ProvisionHandler struct {
	provision *service.ProvisionService
}

// NewProvisionHandler constructs ProvisionHandler.
func NewProvisionHandler(provision *service.ProvisionService) *ProvisionHandler {
	return &ProvisionHandler{provision: provision}
}

// ProvisionTuition godoc
// @Summary Create a tuition with its first admin
// @Tags Provisioning
// @Accept json
// @Produce json
// @Param payload body service.ProvisionTuitionRequest true "Tuition payload"
// @Success 201 {object} response.Envelope
// @Router /admin/provision/tuition-admin [post]
func (h *ProvisionHandler) ProvisionTuition(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ProvisionTuitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid provisioning payload"))
		return
	}
	tuition, admin, err := h.provision.ProvisionTuition(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"tuition": tuition, "admin": admin})
}

// ProvisionStudentUser godoc
// @Summary Create a login account for an enrolled student
// @Tags Provisioning
// @Accept json
// @Produce json
// @Param payload body service.ProvisionStudentUserRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Router /admin/provision/student-user [post]
func (h *ProvisionHandler) ProvisionStudentUser(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ProvisionStudentUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid provisioning payload"))
		return
	}
	user, err := h.provision.ProvisionStudentUser(c.Request.Context(), tuitionFromContext(c), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// ListAccounts godoc
// @Summary List login accounts for the tuition
// @Tags Provisioning
// @Produce json
// @Param role query string false "Filter by role"
// @Param active query bool false "Filter by active state"
// @Success 200 {object} response.Envelope
// @Router /admin/accounts [get]
func (h *ProvisionHandler) ListAccounts(c *gin.Context) {
	var filter models.UserFilter
	filter.TuitionID = tuitionFromContext(c)
	filter.Search = strings.TrimSpace(c.Query("search"))
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	filter.Active = boolQuery(c, "active")
	filter.Page, filter.PageSize = pageQuery(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	users, pagination, err := h.provision.ListAccounts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}
