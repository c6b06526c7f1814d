package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"PostPilot/internal/config"
	"PostPilot/internal/domain"
	"PostPilot/internal/infrastructure/content"
	"PostPilot/internal/ports"
)

// Summarizer calls an OpenAI-compatible chat completions endpoint. Transient
// failures are retried within the budget; policy refusals and credential
// failures surface immediately and are never retried.
type Summarizer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	maxWords     int
	maxRetries   int
	retryDelay   time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer builds a client from configuration.
func NewSummarizer(cfg config.LLMConfig, httpCfg config.HTTPConfig, logger *slog.Logger) *Summarizer {
	maxRetries := httpCfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Summarizer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		maxWords:     cfg.MaxContentWords,
		maxRetries:   maxRetries,
		retryDelay:   httpCfg.RetryDelay.Std(),
		httpClient: &http.Client{
			Timeout: httpCfg.RequestTimeout.Std(),
		},
		logger: logger,
	}
}

// Summarize produces a short post-ready summary of the item's content.
func (s *Summarizer) Summarize(ctx context.Context, item domain.Item) (string, error) {
	if s.apiKey == "" || s.endpoint == "" || s.model == "" {
		return "", fmt.Errorf("summarizer misconfigured")
	}

	text := content.TruncateWords(item.Content, s.maxWords)

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		summary, err := s.complete(ctx, item.Title, text)
		if err == nil {
			return summary, nil
		}
		if domain.IsBlocked(err) || domain.IsAuth(err) {
			return "", err
		}

		lastErr = err
		s.logger.Warn("summarize attempt failed",
			"item", item.ID, "attempt", attempt, "max", s.maxRetries, "error", err)

		if attempt == s.maxRetries {
			break
		}
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("summarize %s: %w", item.ID, lastErr)
}

func (s *Summarizer) complete(ctx context.Context, title, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": s.systemPrompt},
			{"role": "user", "content": fmt.Sprintf("Title: %s\n\n%s", title, text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		detail := strings.TrimSpace(string(raw))

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return "", fmt.Errorf("llm %s: %w", resp.Status, domain.ErrAuthentication)
		case isPolicyRefusal(resp.StatusCode, detail):
			return "", fmt.Errorf("llm refused: %s: %w", detail, domain.ErrContentBlocked)
		default:
			return "", fmt.Errorf("llm error %s: %s", resp.Status, detail)
		}
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("llm filtered completion: %w", domain.ErrContentBlocked)
	}

	summary := strings.TrimSpace(choice.Message.Content)
	if summary == "" {
		return "", fmt.Errorf("completion returned empty summary")
	}
	return summary, nil
}

func isPolicyRefusal(status int, detail string) bool {
	if status != http.StatusBadRequest {
		return false
	}
	lower := strings.ToLower(detail)
	return strings.Contains(lower, "content_filter") ||
		strings.Contains(lower, "content policy") ||
		strings.Contains(lower, "blocked")
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You write short, engaging social-media summaries of technology articles."
	}
	return prompt
}
