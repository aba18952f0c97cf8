package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/models"
	"github.com/edunexa/tuition-api/internal/service"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// TestHandler exposes weekly test and result endpoints.
type TestHandler struct {
	tests *service.TestService
}

// NewTestHandler constructs TestHandler.
func NewTestHandler(tests *service.TestService) *TestHandler {
	return &TestHandler{tests: tests}
}

// List godoc
// @Summary List weekly tests
// @Tags Tests
// @Produce json
// @Param divisionId query string false "Filter by division"
// @Param subjectId query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /tests [get]
func (h *TestHandler) List(c *gin.Context) {
	var filter models.TestFilter
	filter.TuitionID = tuitionFromContext(c)
	filter.DivisionID = c.Query("divisionId")
	filter.SubjectID = c.Query("subjectId")
	filter.DateFrom = dateQuery(c, "from")
	filter.DateTo = dateQuery(c, "to")
	filter.Page, filter.PageSize = pageQuery(c)

	tests, pagination, err := h.tests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tests, pagination)
}

// Get returns one test.
func (h *TestHandler) Get(c *gin.Context) {
	test, err := h.tests.Get(c.Request.Context(), tuitionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Create godoc
// @Summary Schedule a weekly test
// @Tags Tests
// @Accept json
// @Produce json
// @Param payload body service.WeeklyTestRequest true "Test payload"
// @Success 201 {object} response.Envelope
// @Router /tests [post]
func (h *TestHandler) Create(c *gin.Context) {
	var req service.WeeklyTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid test payload"))
		return
	}
	test, err := h.tests.Create(c.Request.Context(), tuitionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// Update edits a test.
func (h *TestHandler) Update(c *gin.Context) {
	var req service.WeeklyTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid test payload"))
		return
	}
	test, err := h.tests.Update(c.Request.Context(), tuitionFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Delete removes a test and its results.
func (h *TestHandler) Delete(c *gin.Context) {
	if err := h.tests.Delete(c.Request.Context(), tuitionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Results godoc
// @Summary List results for a test
// @Tags Tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /tests/{id}/results [get]
func (h *TestHandler) Results(c *gin.Context) {
	results, err := h.tests.Results(c.Request.Context(), tuitionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// SubmitResults godoc
// @Summary Submit results for a test
// @Tags Tests
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param payload body service.SubmitResultsRequest true "Results payload"
// @Success 200 {object} response.Envelope
// @Router /tests/{id}/results [post]
func (h *TestHandler) SubmitResults(c *gin.Context) {
	var req service.SubmitResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid results payload"))
		return
	}
	count, err := h.tests.SubmitResults(c.Request.Context(), tuitionFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"saved": count}, nil)
}

// StudentResults returns all results for one student.
func (h *TestHandler) StudentResults(c *gin.Context) {
	results, err := h.tests.StudentResults(c.Request.Context(), tuitionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
