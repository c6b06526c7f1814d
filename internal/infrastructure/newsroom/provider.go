package newsroom

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

// Listing-page selectors, ordered most to least specific. News sites swap
// layouts without notice; the fallback pass over <article> tags catches
// redesigns until a selector is added.
var listingSelectors = []string{
	"a.post-card__title-link",
	"h2.post-block__title a",
	"div.river-block h2 a",
	"li.river-item h2 a",
	"article header h2 a",
}

// Provider scrapes a newsroom category listing page for article links.
type Provider struct {
	name    string
	pageURL string
	client  *http.Client
}

var _ ports.SourceProvider = (*Provider)(nil)

// New wires the listing page; client defaults to a 20s-timeout client.
func New(name, pageURL string, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Provider{name: name, pageURL: pageURL, client: client}
}

// Name identifies the provider in logs and item sources.
func (p *Provider) Name() string { return p.name }

// ListItems fetches the listing page and extracts up to limit article links
// in page order.
func (p *Provider) ListItems(ctx context.Context, limit int) ([]domain.Item, error) {
	doc, err := p.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(p.pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", p.pageURL, err)
	}

	seen := map[string]struct{}{}
	items := make([]domain.Item, 0, limit)

	collect := func(sel *goquery.Selection) {
		if len(items) >= limit {
			return
		}
		title := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		link := absoluteURL(base, href)
		if link == "" || title == "" {
			return
		}
		if !looksLikeArticle(link, title) {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		items = append(items, domain.NewItem(title, link, p.name))
	}

	for _, selector := range listingSelectors {
		if len(items) >= limit {
			break
		}
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			collect(sel)
		})
	}

	if len(items) == 0 {
		doc.Find("article a[href]").Each(func(_ int, sel *goquery.Selection) {
			collect(sel)
		})
	}

	return items, nil
}

func (p *Provider) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PostPilot/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return doc, nil
}

func absoluteURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// looksLikeArticle filters category and navigation links: article URLs on
// dated newsrooms carry the year, and headlines have some length.
func looksLikeArticle(link, title string) bool {
	return strings.Contains(link, "/20") && len(title) > 15
}
