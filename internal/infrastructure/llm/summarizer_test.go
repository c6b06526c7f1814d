package llm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PostPilot/internal/config"
	"PostPilot/internal/domain"
)

func newTestSummarizer(endpoint string) *Summarizer {
	llmCfg, httpCfg := testConfig(endpoint)
	return NewSummarizer(llmCfg, httpCfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig(endpoint string) (config.LLMConfig, config.HTTPConfig) {
	llmCfg := config.LLMConfig{
		Endpoint:        endpoint,
		Model:           "test-model",
		APIKey:          "test-key",
		MaxContentWords: 100,
	}
	httpCfg := config.HTTPConfig{
		RequestTimeout: config.Duration(5 * time.Second),
		MaxRetries:     3,
		RetryDelay:     config.Duration(time.Millisecond),
	}
	return llmCfg, httpCfg
}

func testItem() domain.Item {
	item := domain.NewItem("Sample Title", "https://example.org/sample", "test")
	item.Content = "Some article content worth summarizing."
	return item
}

func TestSummarizeRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"A crisp summary."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	s := newTestSummarizer(server.URL)
	summary, err := s.Summarize(context.Background(), testItem())
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if summary != "A crisp summary." {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSummarizeDoesNotRetryBlockedContent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"content_filter","message":"blocked"}}`))
	}))
	defer server.Close()

	s := newTestSummarizer(server.URL)
	_, err := s.Summarize(context.Background(), testItem())
	if !domain.IsBlocked(err) {
		t.Fatalf("expected blocked-content error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("blocked content must not retry, got %d attempts", calls.Load())
	}
}

func TestSummarizeSurfacesAuthFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := newTestSummarizer(server.URL)
	_, err := s.Summarize(context.Background(), testItem())
	if !domain.IsAuth(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestSummarizeFailsAfterBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newTestSummarizer(server.URL)
	if _, err := s.Summarize(context.Background(), testItem()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSummarizeFilteredFinishReasonIsBlocked(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""},"finish_reason":"content_filter"}]}`))
	}))
	defer server.Close()

	s := newTestSummarizer(server.URL)
	_, err := s.Summarize(context.Background(), testItem())
	if !domain.IsBlocked(err) {
		t.Fatalf("expected blocked-content error, got %v", err)
	}
}
