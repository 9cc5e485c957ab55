package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/utils"
)

// OpenAIAdapter talks to any OpenAI-compatible chat completions endpoint.
type OpenAIAdapter struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	Client    *http.Client
}

var (
	cacheMu    sync.Mutex
	cacheStore = map[uint64]cacheEntry{}
	cacheTTL   = 60 * time.Second
)

type cacheEntry struct {
	value Reply
	exp   time.Time
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

func (a OpenAIAdapter) Converse(ctx context.Context, history []models.ChatMessage) (Reply, error) {
	if strings.TrimSpace(a.BaseURL) == "" {
		return Reply{}, fmt.Errorf("AI_URL is not set")
	}
	if strings.TrimSpace(a.Model) == "" {
		return Reply{}, fmt.Errorf("AI_MODEL is not set")
	}

	key := historyKey(a.Model, history)
	if v, ok := cacheGet(key); ok {
		return v, nil
	}

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		Model          string            `json:"model"`
		MaxTokens      int               `json:"max_tokens,omitempty"`
		ResponseFormat map[string]string `json:"response_format"`
		Messages       []msg             `json:"messages"`
	}{
		Model:          a.Model,
		MaxTokens:      a.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages:       []msg{{Role: "system", Content: systemPrompt}},
	}
	for _, h := range history {
		payload.Messages = append(payload.Messages, msg{Role: h.Role, Content: h.Content})
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}
	url := strings.TrimRight(a.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(a.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	client := a.Client
	if client == nil {
		timeout := 45 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Reply{}, fmt.Errorf("assistant request timed out")
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Reply{}, fmt.Errorf("assistant request timed out")
		}
		return Reply{}, fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			if d := retryAfter(resp.Header.Get("Retry-After"), errBody); d > 0 {
				return Reply{}, RateLimitError{RetryAfter: d}
			}
			return Reply{}, RateLimitError{}
		}
		return Reply{}, fmt.Errorf("assistant http error: %s: %v", resp.Status, errBody)
	}

	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Reply{}, err
	}
	if len(res.Choices) == 0 {
		return Reply{}, fmt.Errorf("empty assistant response")
	}
	out, err := parseReply(res.Choices[0].Message.Content)
	if err != nil {
		return Reply{}, err
	}
	cacheSet(key, out)
	return out, nil
}

func historyKey(model string, history []models.ChatMessage) uint64 {
	parts := make([]string, 0, 1+2*len(history))
	parts = append(parts, model)
	for _, h := range history {
		parts = append(parts, h.Role, h.Content)
	}
	return utils.HashStrings(parts...)
}

func cacheGet(key uint64) (Reply, bool) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if e, ok := cacheStore[key]; ok {
		if time.Now().Before(e.exp) {
			return e.value, true
		}
		delete(cacheStore, key)
	}
	return Reply{}, false
}

func cacheSet(key uint64, value Reply) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cacheStore[key] = cacheEntry{
		value: value,
		exp:   time.Now().Add(cacheTTL),
	}
}

func retryAfter(header string, errBody map[string]any) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	errObj, ok := errBody["error"].(map[string]any)
	if !ok {
		return 0
	}
	details, ok := errObj["details"].([]any)
	if !ok {
		return 0
	}
	for _, d := range details {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := m["@type"].(string); ok && strings.Contains(t, "RetryInfo") {
			if s, ok := m["retryDelay"].(string); ok {
				if dur, err := time.ParseDuration(s); err == nil {
					return dur
				}
			}
		}
	}
	return 0
}
