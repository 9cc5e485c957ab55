package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/utils"
)

// MockAdapter answers deterministically from the last citizen message.
type MockAdapter struct{}

var mockKeywords = []struct {
	word       string
	category   models.Category
	department string
}{
	{"garbage", models.CategorySanitation, "Sanitation Department"},
	{"drain", models.CategorySanitation, "Sanitation Department"},
	{"pothole", models.CategoryRoads, "Public Works Department"},
	{"road", models.CategoryRoads, "Public Works Department"},
	{"power", models.CategoryElectricity, "Electricity Board"},
	{"streetlight", models.CategoryElectricity, "Electricity Board"},
	{"water", models.CategoryWater, "Water Supply Department"},
	{"theft", models.CategoryLawOrder, "Police Department"},
}

func (m MockAdapter) Converse(ctx context.Context, history []models.ChatMessage) (Reply, error) {
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			last = history[i].Content
			break
		}
	}
	if strings.TrimSpace(last) == "" {
		return Reply{Text: "Namaste! Please describe the problem you are facing and where it is."}, nil
	}

	h := utils.HashStrings(last)
	priorities := []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical}
	slas := []int{72, 48, 24, 8}
	idx := int(h % uint64(len(priorities)))

	ex := models.ExtractedData{
		Category: string(models.CategoryOther),
		Priority: string(priorities[idx]),
		Summary:  summarize(last),
		SLAHours: slas[idx],
	}
	lower := strings.ToLower(last)
	src := last
	if len(src) != len(lower) {
		src = lower
	}
	for _, k := range mockKeywords {
		if strings.Contains(lower, k.word) {
			ex.Category = string(k.category)
			ex.Department = k.department
			break
		}
	}
	if i := strings.Index(lower, " near "); i >= 0 {
		ex.Location = strings.TrimSpace(src[i+len(" near "):])
	} else if i := strings.Index(lower, " at "); i >= 0 {
		ex.Location = strings.TrimSpace(src[i+len(" at "):])
	}
	ex.Complete = ex.Location != "" && ex.Category != string(models.CategoryOther)

	text := "Thank you. Where exactly is this happening?"
	if ex.Location != "" {
		text = fmt.Sprintf("Thank you. I have noted a %s issue at %s. You can submit it now.", ex.Category, ex.Location)
	}
	return Reply{Text: text, Extracted: ex}, nil
}

func summarize(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 140 {
		s = s[:140]
	}
	return s
}
