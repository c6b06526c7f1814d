package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

// Executor talks to the browser-automation sidecar that performs the actual
// LinkedIn actions. The sidecar exposes /login, /post, and /close.
type Executor struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.PublishExecutor = (*Executor)(nil)

// NewExecutor creates a reusable HTTP client for the sidecar.
func NewExecutor(endpoint, apiKey string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		// Browser automation is slow; leave generous headroom.
		timeout = 90 * time.Second
	}
	return &Executor{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Login establishes the browser session.
func (e *Executor) Login(ctx context.Context) error {
	return e.post(ctx, "/login", nil)
}

// Publish submits the post text.
func (e *Executor) Publish(ctx context.Context, text string) error {
	return e.post(ctx, "/post", map[string]string{"text": text})
}

// Close tears down the browser session; best effort with its own deadline.
func (e *Executor) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.post(ctx, "/close", nil)
}

func (e *Executor) post(ctx context.Context, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("call executor %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("executor %s: %s: %w", path, resp.Status, domain.ErrAuthentication)
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("executor %s: %s: %s", path, resp.Status, strings.TrimSpace(string(raw)))
	}
	return nil
}
