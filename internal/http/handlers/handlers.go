package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/janmitra/backend/internal/ai"
	"github.com/janmitra/backend/internal/http/middleware"
	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/realtime"
	"github.com/janmitra/backend/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Store          Pinger
	Grievances     *service.GrievanceService
	Directory      *service.DirectoryService
	Intake         ai.Adapter
	Feed           *realtime.Feed
	Validator      *validator.Validate
	Logger         zerolog.Logger
	PublicTracking bool
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func identity(c *gin.Context) *models.Identity {
	return middleware.CurrentIdentity(c)
}

// bind decodes and validates a JSON body, writing the error response itself.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

var kindStatus = map[service.Kind]int{
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindForbidden:    http.StatusForbidden,
	service.KindConflict:     http.StatusConflict,
	service.KindNotFound:     http.StatusNotFound,
	service.KindValidation:   http.StatusBadRequest,
	service.KindUpstream:     http.StatusBadGateway,
	service.KindReferential:  http.StatusConflict,
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		se = service.Upstream("unexpected failure", err).(*service.Error)
	}
	status, ok := kindStatus[se.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	var details any
	if se.Kind == service.KindUpstream {
		h.Logger.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDHeader)).Msg("upstream failure")
		if se.Err != nil {
			details = se.Err.Error()
		}
	}
	writeError(c, status, string(se.Kind), se.Message, details)
}

// redact hides officer-only fields from citizens.
func redact(id *models.Identity, g models.Grievance) models.Grievance {
	if id != nil && id.Role == models.RoleCitizen {
		g.InternalNotes = []string{}
	}
	return g
}
