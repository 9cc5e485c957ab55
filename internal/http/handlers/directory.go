package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/janmitra/backend/internal/service"
)

type DepartmentRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type ProfileRequest struct {
	Role         string  `json:"role" validate:"omitempty,oneof=citizen officer admin"`
	DepartmentID *string `json:"department_id" validate:"omitempty,max=64"`
	IsActive     *bool   `json:"is_active"`
	FullName     *string `json:"full_name" validate:"omitempty,max=200"`
}

// @Summary Current profile
// @Tags profiles
// @Produce json
// @Success 200 {object} models.Profile
// @Router /api/me [get]
func (h *Handler) Me(c *gin.Context) {
	p, err := h.Directory.Me(c.Request.Context(), identity(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary List departments
// @Tags departments
// @Produce json
// @Success 200 {array} models.Department
// @Router /api/departments [get]
func (h *Handler) DepartmentsList(c *gin.Context) {
	out, err := h.Directory.ListDepartments(c.Request.Context(), identity(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Create department
// @Tags departments
// @Accept json
// @Produce json
// @Param body body DepartmentRequest true "Department"
// @Success 201 {object} models.Department
// @Failure 409 {object} map[string]any
// @Router /api/departments [post]
func (h *Handler) CreateDepartment(c *gin.Context) {
	var req DepartmentRequest
	if !h.bind(c, &req) {
		return
	}
	d, err := h.Directory.CreateDepartment(c.Request.Context(), identity(c), service.DepartmentInput{Name: req.Name, Description: req.Description})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// @Summary Update department
// @Tags departments
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param body body DepartmentRequest true "Department"
// @Success 200 {object} models.Department
// @Router /api/departments/{id} [put]
func (h *Handler) UpdateDepartment(c *gin.Context) {
	var req DepartmentRequest
	if !h.bind(c, &req) {
		return
	}
	d, err := h.Directory.UpdateDepartment(c.Request.Context(), identity(c), c.Param("id"), service.DepartmentInput{Name: req.Name, Description: req.Description})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary Delete department
// @Description Rejected while grievances or officers still reference it
// @Tags departments
// @Param id path string true "Department ID"
// @Success 204
// @Failure 409 {object} map[string]any
// @Router /api/departments/{id} [delete]
func (h *Handler) DeleteDepartment(c *gin.Context) {
	if err := h.Directory.DeleteDepartment(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List profiles
// @Tags profiles
// @Produce json
// @Param role query string false "Role filter"
// @Success 200 {array} models.Profile
// @Router /api/profiles [get]
func (h *Handler) ProfilesList(c *gin.Context) {
	out, err := h.Directory.ListProfiles(c.Request.Context(), identity(c), c.Query("role"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Update profile
// @Description Change role, department or active flag of a user
// @Tags profiles
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param body body ProfileRequest true "Fields to change"
// @Success 200 {object} models.Profile
// @Router /api/profiles/{id} [patch]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.Directory.UpdateProfile(c.Request.Context(), identity(c), c.Param("id"), service.ProfileInput{
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
		IsActive:     req.IsActive,
		FullName:     req.FullName,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
