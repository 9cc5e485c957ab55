// Package ai runs the conversational intake: it sends the chat so far to a
// model and returns the next assistant turn plus the structured extraction.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/janmitra/backend/internal/models"
)

type Reply struct {
	Text      string               `json:"reply"`
	Extracted models.ExtractedData `json:"extracted"`
}

type Adapter interface {
	Converse(ctx context.Context, history []models.ChatMessage) (Reply, error)
}

var ErrMalformedReply = errors.New("assistant reply is not valid JSON")

const systemPrompt = `You are Jan-Mitra, a civic grievance intake assistant for an Indian municipality.
Talk with the citizen until you know what the problem is, where it is and how urgent it is.
Always answer with a single JSON object and nothing else:
{"reply": "<your next message to the citizen>",
 "extracted": {"category": "Sanitation|Roads|Electricity|Water|Law & Order|Other",
               "location": "<place>", "priority": "Low|Medium|High|Critical",
               "summary": "<one sentence>", "department": "<responsible department name>",
               "sla_hours": <integer>, "complete": <true when category, location and summary are known>}}`

// parseReply accepts the model output with or without a markdown code fence.
func parseReply(raw string) (Reply, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	var r Reply
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if strings.TrimSpace(r.Text) == "" {
		return Reply{}, fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}
	return r, nil
}
