package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

// Provider fetches recent stories from the HN Algolia search API.
type Provider struct {
	name     string
	baseURL  string
	query    string
	keywords []string
	client   *http.Client
}

var _ ports.SourceProvider = (*Provider)(nil)

// New wires the Algolia endpoint; client defaults to a 15s-timeout client.
func New(name, baseURL, query string, keywords []string, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Provider{
		name:     name,
		baseURL:  baseURL,
		query:    query,
		keywords: keywords,
		client:   client,
	}
}

// Name identifies the provider in logs and item sources.
func (p *Provider) Name() string { return p.name }

// ListItems queries search_by_date and keeps externally-linked stories whose
// titles match the configured keywords, up to limit.
func (p *Provider) ListItems(ctx context.Context, limit int) ([]domain.Item, error) {
	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %s: %w", p.baseURL, err)
	}

	// Over-fetch so keyword filtering still fills the cap.
	params := endpoint.Query()
	params.Set("query", p.query)
	params.Set("tags", "story")
	params.Set("hitsPerPage", strconv.Itoa(limit+20))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PostPilot/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query hackernews: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hackernews returned %s", resp.Status)
	}

	var payload struct {
		Hits []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			StoryText   string `json:"story_text"`
			CommentText string `json:"comment_text"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode hackernews response: %w", err)
	}

	items := make([]domain.Item, 0, limit)
	for _, hit := range payload.Hits {
		// Self-posts carry story_text and have no external article.
		if hit.Title == "" || !strings.HasPrefix(hit.URL, "http") || hit.StoryText != "" || hit.CommentText != "" {
			continue
		}
		if !p.matchesKeywords(hit.Title) {
			continue
		}
		items = append(items, domain.NewItem(hit.Title, hit.URL, p.name))
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (p *Provider) matchesKeywords(title string) bool {
	if len(p.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range p.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
