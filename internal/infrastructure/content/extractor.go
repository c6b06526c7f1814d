package content

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PostPilot/internal/ports"
)

// Extractor pulls the readable body text out of an article page and caps it
// at a word budget so oversized pages degrade deterministically instead of
// failing.
type Extractor struct {
	client   *http.Client
	maxWords int
}

var _ ports.ContentFetcher = (*Extractor)(nil)

// New wires an HTTP client; maxWords defaults to 1500.
func New(client *http.Client, maxWords int) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if maxWords <= 0 {
		maxWords = 1500
	}
	return &Extractor{client: client, maxWords: maxWords}
}

// Fetch downloads the page and returns its paragraph text, truncated to the
// word cap. An empty result is not an error; the caller decides disposition.
func (e *Extractor) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PostPilot/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var paragraphs []string
	scope.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return TruncateWords(strings.Join(paragraphs, "\n\n"), e.maxWords), nil
}

// TruncateWords cuts text after max words, appending an ellipsis when
// anything was dropped.
func TruncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:max], " ") + "..."
}
