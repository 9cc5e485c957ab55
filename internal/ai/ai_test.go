package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janmitra/backend/internal/models"
)

func TestParseReply(t *testing.T) {
	raw := "```json\n{\"reply\":\"Where is it?\",\"extracted\":{\"category\":\"Roads\",\"priority\":\"High\",\"sla_hours\":24}}\n```"
	r, err := parseReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "Where is it?", r.Text)
	assert.Equal(t, "Roads", r.Extracted.Category)
	assert.Equal(t, 24, r.Extracted.SLAHours)
}

func TestParseReplyRejectsProse(t *testing.T) {
	_, err := parseReply("Sure! I can help with that.")
	assert.ErrorIs(t, err, ErrMalformedReply)

	_, err = parseReply(`{"extracted":{}}`)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestMockAdapterIsDeterministic(t *testing.T) {
	history := []models.ChatMessage{
		{Role: "user", Content: "There is a huge pothole near MG Road bus stop"},
	}
	a, err := MockAdapter{}.Converse(context.Background(), history)
	require.NoError(t, err)
	b, err := MockAdapter{}.Converse(context.Background(), history)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, string(models.CategoryRoads), a.Extracted.Category)
	assert.Equal(t, "MG Road bus stop", a.Extracted.Location)
	assert.True(t, a.Extracted.Complete)
	_, ok := models.ParsePriority(a.Extracted.Priority)
	assert.True(t, ok)
}

func TestMockAdapterGreetsOnEmptyHistory(t *testing.T) {
	r, err := MockAdapter{}.Converse(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, r.Text)
	assert.False(t, r.Extracted.Complete)
}

func TestOpenAIAdapter(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) == 0 || body.Messages[0].Role != "system" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{
				"content": `{"reply":"Noted.","extracted":{"category":"Water","complete":false}}`,
			}}},
		})
	}))
	defer srv.Close()

	a := OpenAIAdapter{BaseURL: srv.URL, Model: "test-model-openai", APIKey: "k"}
	r, err := a.Converse(context.Background(), []models.ChatMessage{{Role: "user", Content: "no water since monday"}})
	require.NoError(t, err)
	assert.Equal(t, "Noted.", r.Text)
	assert.Equal(t, "Water", r.Extracted.Category)
	assert.Equal(t, "Bearer k", gotAuth)
}

func TestOpenAIAdapterRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := OpenAIAdapter{BaseURL: srv.URL, Model: "test-model-ratelimit"}
	_, err := a.Converse(context.Background(), []models.ChatMessage{{Role: "user", Content: "hello"}})
	var rl RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
}

func TestOpenAIAdapterNonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "plain words"}}},
		})
	}))
	defer srv.Close()

	a := OpenAIAdapter{BaseURL: srv.URL, Model: "test-model-prose"}
	_, err := a.Converse(context.Background(), []models.ChatMessage{{Role: "user", Content: "hello"}})
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func geminiServer(t *testing.T, text string, seen *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/models/test-model-gemini:generateContent") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Contents []struct {
				Role string `json:"role"`
			} `json:"contents"`
			SystemInstruction *struct{} `json:"systemInstruction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SystemInstruction == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if seen != nil {
			for _, c := range body.Contents {
				*seen = append(*seen, c.Role)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiAdapter(t *testing.T) {
	var roles []string
	srv := geminiServer(t, `{"reply":"Which ward?","extracted":{"category":"Water","priority":"High"}}`, &roles)

	a, err := NewGeminiAdapter(context.Background(), "k", "test-model-gemini", srv.URL)
	require.NoError(t, err)
	r, err := a.Converse(context.Background(), []models.ChatMessage{
		{Role: "user", Content: "no water since monday"},
		{Role: "assistant", Content: "Where do you live?"},
		{Role: "user", Content: "Sector 4"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Which ward?", r.Text)
	assert.Equal(t, "Water", r.Extracted.Category)
	assert.Equal(t, []string{"user", "model", "user"}, roles)
}

func TestGeminiAdapterNonJSONContent(t *testing.T) {
	srv := geminiServer(t, "plain words", nil)

	a, err := NewGeminiAdapter(context.Background(), "k", "test-model-gemini", srv.URL)
	require.NoError(t, err)
	_, err = a.Converse(context.Background(), []models.ChatMessage{{Role: "user", Content: "hello"}})
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestGeminiAdapterRequiresKey(t *testing.T) {
	_, err := NewGeminiAdapter(context.Background(), "", "", "")
	assert.Error(t, err)
}
