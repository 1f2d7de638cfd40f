package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/service"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
	"github.com/svnapro/campuscore-api/pkg/response"
)

// PlacementHandler exposes job posting and round pipeline endpoints.
type PlacementHandler struct {
	service *service.PlacementService
}

// NewPlacementHandler creates a new handler.
func NewPlacementHandler(svc *service.PlacementService) *PlacementHandler {
	return &PlacementHandler{service: svc}
}

// CreateJob godoc
// @Summary Create job posting
// @Description Create a posting; its Applied round is created with it
// @Tags Placements
// @Accept json
// @Produce json
// @Param payload body models.JobInput true "Job payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /placements/jobs [post]
func (h *PlacementHandler) CreateJob(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input models.JobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid job payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), actor, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// GetJob godoc
// @Summary Get job posting
// @Tags Placements
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /placements/jobs/{id} [get]
func (h *PlacementHandler) GetJob(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// ListJobs godoc
// @Summary List job postings
// @Description Students see only postings they are eligible for
// @Tags Placements
// @Produce json
// @Param search query string false "Company or title search"
// @Param active query bool false "Active filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /placements/jobs [get]
func (h *PlacementHandler) ListJobs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.JobFilter{
		Search:    c.Query("search"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	jobs, pagination, err := h.service.ListJobs(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination)
}

// UpdateJob godoc
// @Summary Update job posting
// @Tags Placements
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body models.JobInput true "Job payload"
// @Success 200 {object} response.Envelope
// @Router /placements/jobs/{id} [put]
func (h *PlacementHandler) UpdateJob(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input models.JobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid job payload"))
		return
	}

	job, err := h.service.UpdateJob(c.Request.Context(), actor, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DeleteJob godoc
// @Summary Delete job posting
// @Tags Placements
// @Produce json
// @Param id path string true "Job ID"
// @Success 204 {object} response.Envelope
// @Router /placements/jobs/{id} [delete]
func (h *PlacementHandler) DeleteJob(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteJob(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Apply godoc
// @Summary Apply to a job posting
// @Description Records the caller in the posting's Applied round; applying twice is a no-op
// @Tags Placements
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /placements/jobs/{id}/apply [post]
func (h *PlacementHandler) Apply(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	membership, err := h.service.Apply(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, membership, nil)
}

// CreateRound godoc
// @Summary Create selection round
// @Tags Placements
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body models.RoundInput true "Round payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /placements/jobs/{id}/rounds [post]
func (h *PlacementHandler) CreateRound(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input models.RoundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid round payload"))
		return
	}

	round, err := h.service.CreateRound(c.Request.Context(), actor, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, round)
}

// ListRounds godoc
// @Summary List rounds of a posting
// @Tags Placements
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /placements/jobs/{id}/rounds [get]
func (h *PlacementHandler) ListRounds(c *gin.Context) {
	rounds, err := h.service.ListRounds(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rounds, nil)
}

// DeleteRound godoc
// @Summary Delete a selection round
// @Description The implicit Applied round cannot be deleted
// @Tags Placements
// @Produce json
// @Param roundId path string true "Round ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /placements/rounds/{roundId} [delete]
func (h *PlacementHandler) DeleteRound(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteRound(c.Request.Context(), actor, c.Param("roundId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Promote godoc
// @Summary Promote a student into a round
// @Tags Placements
// @Accept json
// @Produce json
// @Param roundId path string true "Round ID"
// @Param payload body map[string]string true "Student"
// @Success 200 {object} response.Envelope
// @Router /placements/rounds/{roundId}/promote [post]
func (h *PlacementHandler) Promote(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "student_id required"))
		return
	}

	membership, err := h.service.Promote(c.Request.Context(), actor, c.Param("roundId"), payload.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, membership, nil)
}

// RoundMembers godoc
// @Summary Current members of a round
// @Description Students who reached this round and no later one
// @Tags Placements
// @Produce json
// @Param roundId path string true "Round ID"
// @Success 200 {object} response.Envelope
// @Router /placements/rounds/{roundId}/members [get]
func (h *PlacementHandler) RoundMembers(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	members, err := h.service.CurrentMembers(c.Request.Context(), actor, c.Param("roundId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// SetMemberStatus godoc
// @Summary Record a round outcome for a student
// @Tags Placements
// @Accept json
// @Produce json
// @Param roundId path string true "Round ID"
// @Param payload body map[string]string true "Outcome"
// @Success 204 {object} response.Envelope
// @Router /placements/rounds/{roundId}/members [patch]
func (h *PlacementHandler) SetMemberStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		StudentID string  `json:"student_id" binding:"required"`
		Status    string  `json:"status" binding:"required"`
		Notes     *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "student_id and status required"))
		return
	}

	err := h.service.SetMembershipStatus(c.Request.Context(), actor, c.Param("roundId"), payload.StudentID, models.RoundStatus(payload.Status), payload.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Round history of a student for a posting
// @Tags Placements
// @Produce json
// @Param id path string true "Job ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /placements/jobs/{id}/history/{studentId} [get]
func (h *PlacementHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	history, err := h.service.History(c.Request.Context(), actor, c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
