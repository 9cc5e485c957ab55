package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/janmitra/backend/internal/ai"
	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/service"
)

// ChatTurn is one conversation message as sent by clients. System turns are
// never accepted from callers.
type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"max=4000"`
}

func chatMessages(turns []ChatTurn) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, models.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return out
}

type IntakeRequest struct {
	GrievanceID string     `json:"grievance_id" validate:"omitempty,max=64"`
	Messages    []ChatTurn `json:"messages" validate:"required,min=1,max=100,dive"`
}

type IntakeResponse struct {
	Reply     string               `json:"reply"`
	Extracted models.ExtractedData `json:"extracted"`
	Grievance models.Grievance     `json:"grievance"`
}

// @Summary Intake conversation turn
// @Description Sends the conversation to the assistant and saves the reply and extraction into the caller's draft
// @Tags intake
// @Accept json
// @Produce json
// @Param body body IntakeRequest true "Conversation so far"
// @Success 200 {object} IntakeResponse
// @Failure 400 {object} map[string]any
// @Failure 429 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/intake/chat [post]
func (h *Handler) IntakeChat(c *gin.Context) {
	var req IntakeRequest
	if !h.bind(c, &req) {
		return
	}
	id := identity(c)
	if id == nil || !id.Active {
		h.writeServiceError(c, service.Forbidden("Account is deactivated"))
		return
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", "empty message content")
			return
		}
	}

	messages := chatMessages(req.Messages)
	reply, err := h.Intake.Converse(c.Request.Context(), messages)
	if err != nil {
		var rl ai.RateLimitError
		if errors.As(err, &rl) {
			if rl.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
			}
			writeError(c, http.StatusTooManyRequests, "AI_RATE_LIMITED", "Assistant is busy, retry later", nil)
			return
		}
		h.writeServiceError(c, service.Upstream("Assistant unavailable", err))
		return
	}

	history := append(messages, models.ChatMessage{Role: "assistant", Content: reply.Text})
	g, err := h.Grievances.CreateOrUpdateDraft(c.Request.Context(), id, service.DraftInput{
		GrievanceID: req.GrievanceID,
		ChatHistory: history,
		Extracted:   reply.Extracted,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, IntakeResponse{Reply: reply.Text, Extracted: reply.Extracted, Grievance: g})
}
