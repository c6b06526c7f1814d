package newsroom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListItemsExtractsArticleLinks(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<html><body>
		  <h2 class="post-block__title"><a href="/2026/08/27/big-model-launch/">A big model launch changes everything</a></h2>
		  <h2 class="post-block__title"><a href="https://example.com/2026/08/26/chips/">New accelerator chips hit the market</a></h2>
		  <h2 class="post-block__title"><a href="/category/ai/">AI</a></h2>
		</body></html>`))
	}))
	defer server.Close()

	p := New("techcrunch-ai", server.URL, server.Client())

	items, err := p.ListItems(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListItems error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "A big model launch changes everything" {
		t.Fatalf("unexpected first title: %s", items[0].Title)
	}
	if items[0].URL != server.URL+"/2026/08/27/big-model-launch/" {
		t.Fatalf("relative link not resolved: %s", items[0].URL)
	}
	if items[1].URL != "https://example.com/2026/08/26/chips/" {
		t.Fatalf("unexpected second url: %s", items[1].URL)
	}
}

func TestListItemsFallsBackToArticleTags(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<html><body>
		  <article><a href="/2026/08/25/fallback-story/">A story only the fallback pass finds</a></article>
		</body></html>`))
	}))
	defer server.Close()

	p := New("newsroom", server.URL, server.Client())

	items, err := p.ListItems(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListItems error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestListItemsRespectsLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<html><body>
		  <h2 class="post-block__title"><a href="/2026/08/27/one/">First headline long enough to pass</a></h2>
		  <h2 class="post-block__title"><a href="/2026/08/27/two/">Second headline long enough to pass</a></h2>
		  <h2 class="post-block__title"><a href="/2026/08/27/three/">Third headline long enough to pass</a></h2>
		</body></html>`))
	}))
	defer server.Close()

	p := New("newsroom", server.URL, server.Client())

	items, err := p.ListItems(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListItems error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}
