package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/service"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
	"github.com/svnapro/campuscore-api/pkg/response"
)

// DepartmentHandler exposes the org structure endpoints.
type DepartmentHandler struct {
	service *service.DepartmentService
}

// NewDepartmentHandler creates a new handler.
func NewDepartmentHandler(svc *service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{service: svc}
}

// ListColleges godoc
// @Summary List colleges
// @Tags Organisation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /colleges [get]
func (h *DepartmentHandler) ListColleges(c *gin.Context) {
	colleges, err := h.service.ListColleges(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, colleges, nil)
}

// ListDepartments godoc
// @Summary List departments of a college
// @Tags Organisation
// @Produce json
// @Param id path string true "College ID"
// @Success 200 {object} response.Envelope
// @Router /colleges/{id}/departments [get]
func (h *DepartmentHandler) ListDepartments(c *gin.Context) {
	departments, err := h.service.ListDepartments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// CreateDepartment godoc
// @Summary Create department
// @Tags Organisation
// @Accept json
// @Produce json
// @Param payload body models.Department true "Department payload"
// @Success 201 {object} response.Envelope
// @Router /departments [post]
func (h *DepartmentHandler) CreateDepartment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var department models.Department
	if err := c.ShouldBindJSON(&department); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid department payload"))
		return
	}

	if err := h.service.CreateDepartment(c.Request.Context(), actor, &department); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// AssignHOD godoc
// @Summary Assign head of department
// @Description Makes the user HOD; a previous head is demoted back to faculty
// @Tags Organisation
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body map[string]string true "User"
// @Success 204 {object} response.Envelope
// @Router /departments/{id}/hod [put]
func (h *DepartmentHandler) AssignHOD(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "user_id required"))
		return
	}

	if err := h.service.AssignHOD(c.Request.Context(), actor, c.Param("id"), payload.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearHOD godoc
// @Summary Remove head of department
// @Tags Organisation
// @Produce json
// @Param id path string true "Department ID"
// @Success 204 {object} response.Envelope
// @Router /departments/{id}/hod [delete]
func (h *DepartmentHandler) ClearHOD(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.ClearHOD(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSections godoc
// @Summary List sections of a department
// @Tags Organisation
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/sections [get]
func (h *DepartmentHandler) ListSections(c *gin.Context) {
	sections, err := h.service.ListSections(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// CreateSection godoc
// @Summary Create section
// @Tags Organisation
// @Accept json
// @Produce json
// @Param payload body models.Section true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *DepartmentHandler) CreateSection(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var section models.Section
	if err := c.ShouldBindJSON(&section); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid section payload"))
		return
	}

	if err := h.service.CreateSection(c.Request.Context(), actor, &section); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}
