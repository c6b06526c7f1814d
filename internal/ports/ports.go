package ports

import (
	"context"
	"time"

	"PostPilot/internal/domain"
)

// SourceProvider pulls fresh candidate items from one upstream source.
type SourceProvider interface {
	Name() string
	ListItems(ctx context.Context, limit int) ([]domain.Item, error)
}

// ProcessedStore is the durable write-once ledger of item dispositions.
// Record returns false without writing when the id already has a record.
type ProcessedStore interface {
	Has(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, id string, status domain.Status) (bool, error)
}

// ContentFetcher retrieves and extracts the readable body of an item.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Summarizer turns fetched content into a short post-ready summary.
type Summarizer interface {
	Summarize(ctx context.Context, item domain.Item) (string, error)
}

// ApprovalChannel solicits a human decision for one item and blocks until a
// correlated response arrives or the timeout elapses. The returned item
// carries any summary revision made during the edit sub-flow.
type ApprovalChannel interface {
	RequestApproval(ctx context.Context, item domain.Item, timeout time.Duration) (domain.Outcome, domain.Item, error)
	Notify(ctx context.Context, text string) error
}

// PublishExecutor performs the final publish action on the target platform.
type PublishExecutor interface {
	Login(ctx context.Context) error
	Publish(ctx context.Context, text string) error
	Close() error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
