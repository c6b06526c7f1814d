package source

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

// Entry pairs a provider with its per-source item cap.
type Entry struct {
	Provider ports.SourceProvider
	MaxItems int
}

// Aggregator queries all enabled providers concurrently and returns one
// deduplicated candidate list. Provider failures degrade to zero items from
// that provider; they never abort the aggregate fetch.
type Aggregator struct {
	entries    []Entry
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewAggregator wires providers with a shared retry budget.
func NewAggregator(entries []Entry, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Aggregator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Aggregator{
		entries:    entries,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// FetchAll fans out to every provider, then merges results in provider
// registration order, keeping the first occurrence of each identity.
func (a *Aggregator) FetchAll(ctx context.Context) []domain.Item {
	results := make([][]domain.Item, len(a.entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range a.entries {
		i, entry := i, entry
		g.Go(func() error {
			items, err := a.fetchWithRetry(gctx, entry)
			if err != nil {
				a.logger.Error("provider exhausted retries, skipping",
					"provider", entry.Provider.Name(), "error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var merged []domain.Item
	duplicates := 0
	for _, items := range results {
		for _, item := range items {
			if _, ok := seen[item.ID]; ok {
				duplicates++
				continue
			}
			seen[item.ID] = struct{}{}
			merged = append(merged, item)
		}
	}

	a.logger.Info("aggregate fetch done",
		"providers", len(a.entries), "unique", len(merged), "duplicates", duplicates)
	return merged
}

func (a *Aggregator) fetchWithRetry(ctx context.Context, entry Entry) ([]domain.Item, error) {
	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		items, err := entry.Provider.ListItems(ctx, entry.MaxItems)
		if err == nil {
			a.logger.Debug("provider fetch ok",
				"provider", entry.Provider.Name(), "count", len(items), "attempt", attempt)
			return items, nil
		}

		lastErr = err
		a.logger.Warn("provider fetch failed",
			"provider", entry.Provider.Name(), "attempt", attempt, "max", a.maxRetries, "error", err)

		if attempt == a.maxRetries {
			break
		}
		select {
		case <-time.After(a.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
