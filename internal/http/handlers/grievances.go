package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janmitra/backend/internal/db"
	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/service"
)

type DraftRequest struct {
	GrievanceID   string               `json:"grievance_id" validate:"omitempty,max=64"`
	ChatHistory   []ChatTurn           `json:"chat_history" validate:"max=200,dive"`
	ExtractedData models.ExtractedData `json:"extracted_data"`
}

type SubmitRequest struct {
	Category     string `json:"category" validate:"omitempty,max=32"`
	Priority     string `json:"priority" validate:"omitempty,max=16"`
	Location     string `json:"location" validate:"max=500"`
	Description  string `json:"description" validate:"max=5000"`
	DepartmentID string `json:"department_id" validate:"omitempty,max=64"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress resolved rejected pending draft"`
	Note   string `json:"note" validate:"max=2000"`
}

// OverrideRequest: omitted or null fields are left unchanged, an empty string clears a reference.
type OverrideRequest struct {
	DepartmentID      *string `json:"department_id" validate:"omitempty,max=64"`
	AssignedOfficerID *string `json:"assigned_officer_id" validate:"omitempty,max=64"`
	Status            *string `json:"status" validate:"omitempty,max=16"`
}

type HistoryView struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// TrackingView is the public projection of a grievance returned by tracking lookups.
type TrackingView struct {
	TrackingID  string        `json:"tracking_id"`
	Status      models.Status `json:"status"`
	Category    string        `json:"category"`
	Priority    string        `json:"priority"`
	Location    string        `json:"location"`
	Description string        `json:"description"`
	SubmittedAt *time.Time    `json:"submitted_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	History     []HistoryView `json:"history"`
}

func trackingView(g models.Grievance) TrackingView {
	v := TrackingView{
		Status:      g.Status,
		Category:    string(g.Category),
		Priority:    string(g.Priority),
		Location:    g.Location,
		Description: g.Description,
		SubmittedAt: g.SubmittedAt,
		UpdatedAt:   g.UpdatedAt,
		History:     []HistoryView{},
	}
	if g.TrackingID != nil {
		v.TrackingID = *g.TrackingID
	}
	for _, e := range g.StatusHistory {
		v.History = append(v.History, HistoryView{Status: e.Status, Timestamp: e.Timestamp, Note: e.Note})
	}
	return v
}

// @Summary Create or update a draft
// @Tags grievances
// @Accept json
// @Produce json
// @Param body body DraftRequest true "Draft content"
// @Success 200 {object} models.Grievance
// @Failure 401 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Router /api/grievances/drafts [post]
func (h *Handler) SaveDraft(c *gin.Context) {
	var req DraftRequest
	if !h.bind(c, &req) {
		return
	}
	g, err := h.Grievances.CreateOrUpdateDraft(c.Request.Context(), identity(c), service.DraftInput{
		GrievanceID: req.GrievanceID,
		ChatHistory: chatMessages(req.ChatHistory),
		Extracted:   req.ExtractedData,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// @Summary Submit a draft
// @Description Moves the caller's draft to pending and assigns its tracking code
// @Tags grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param body body SubmitRequest false "Final field overrides"
// @Success 200 {object} models.Grievance
// @Failure 400 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Router /api/grievances/{id}/submit [post]
func (h *Handler) SubmitDraft(c *gin.Context) {
	var req SubmitRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	g, err := h.Grievances.SubmitDraft(c.Request.Context(), identity(c), c.Param("id"), service.SubmitInput{
		Category:     req.Category,
		Priority:     req.Priority,
		Location:     req.Location,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// @Summary Claim a grievance
// @Description Officer self-assignment; exactly one concurrent claimant wins
// @Tags grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} models.Grievance
// @Failure 409 {object} map[string]any
// @Router /api/grievances/{id}/assign [post]
func (h *Handler) AssignSelf(c *gin.Context) {
	g, err := h.Grievances.AssignSelf(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// @Summary Update grievance status
// @Tags grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param body body StatusRequest true "New status and note"
// @Success 200 {object} models.Grievance
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/grievances/{id}/status [post]
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	status, _ := models.ParseStatus(req.Status)
	g, err := h.Grievances.UpdateStatus(c.Request.Context(), identity(c), c.Param("id"), status, req.Note)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// @Summary Admin override
// @Description Directly set department, assignee or status
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param body body OverrideRequest true "Fields to change"
// @Success 200 {object} models.Grievance
// @Failure 400 {object} map[string]any
// @Router /api/grievances/{id}/override [patch]
func (h *Handler) AdminOverride(c *gin.Context) {
	var req OverrideRequest
	if !h.bind(c, &req) {
		return
	}
	in := service.OverrideInput{DepartmentID: req.DepartmentID, AssignedOfficerID: req.AssignedOfficerID}
	if req.Status != nil {
		s, ok := models.ParseStatus(*req.Status)
		if !ok {
			writeError(c, http.StatusBadRequest, string(service.KindValidation), "unknown status "+*req.Status, nil)
			return
		}
		in.Status = &s
	}
	g, err := h.Grievances.AdminOverride(c.Request.Context(), identity(c), c.Param("id"), in)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// @Summary Delete a grievance
// @Description Citizens delete their own drafts; admins delete any grievance
// @Tags grievances
// @Param id path string true "Grievance ID"
// @Success 204
// @Failure 403 {object} map[string]any
// @Router /api/grievances/{id} [delete]
func (h *Handler) DeleteGrievance(c *gin.Context) {
	id := identity(c)
	var err error
	if id != nil && id.Role == models.RoleAdmin {
		err = h.Grievances.DeleteGrievance(c.Request.Context(), id, c.Param("id"))
	} else {
		err = h.Grievances.DeleteDraft(c.Request.Context(), id, c.Param("id"))
	}
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Grievance details
// @Tags grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} models.Grievance
// @Failure 404 {object} map[string]any
// @Router /api/grievances/{id} [get]
func (h *Handler) GrievanceDetails(c *gin.Context) {
	id := identity(c)
	g, err := h.Grievances.GetGrievance(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grievance": redact(id, g), "next_statuses": service.NextStatuses(g.Status)})
}

// @Summary List grievances
// @Description Citizens see their own, officers their queues, admins everything
// @Tags grievances
// @Produce json
// @Param status query string false "Status filter"
// @Param department_id query string false "Department filter (admin)"
// @Param officer_id query string false "Assignee filter (admin)"
// @Param limit query int false "Limit (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/grievances [get]
func (h *Handler) GrievancesList(c *gin.Context) {
	var status models.Status
	if v := c.Query("status"); v != "" {
		s, ok := models.ParseStatus(v)
		if !ok {
			writeError(c, http.StatusBadRequest, string(service.KindValidation), "unknown status "+v, nil)
			return
		}
		status = s
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, offset = db.PageBounds(limit, offset)

	id := identity(c)
	items, err := h.Grievances.ListGrievances(c.Request.Context(), id, service.ListFilter{
		Status:       status,
		DepartmentID: c.Query("department_id"),
		OfficerID:    c.Query("officer_id"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	for i := range items {
		items[i] = redact(id, items[i])
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Track a grievance
// @Description Public lookup by tracking code; drafts are never returned
// @Tags tracking
// @Produce json
// @Param code path string true "Tracking code, e.g. JM-7Q2K9D"
// @Success 200 {object} TrackingView
// @Failure 404 {object} map[string]any
// @Router /api/track/{code} [get]
func (h *Handler) TrackGrievance(c *gin.Context) {
	if !h.PublicTracking && identity(c) == nil {
		h.writeServiceError(c, service.Unauthorized())
		return
	}
	g, err := h.Grievances.LookupByTrackingCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if g == nil {
		writeError(c, http.StatusNotFound, string(service.KindNotFound), "No grievance with that tracking code", nil)
		return
	}
	c.JSON(http.StatusOK, trackingView(*g))
}

// @Summary Dashboard statistics
// @Tags admin
// @Produce json
// @Success 200 {object} models.Stats
// @Router /api/admin/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.Grievances.Stats(c.Request.Context(), identity(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
