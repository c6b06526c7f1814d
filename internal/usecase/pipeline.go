package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

// CandidateSource yields one run's deduplicated candidate list.
type CandidateSource interface {
	FetchAll(ctx context.Context) []domain.Item
}

// ItemPublisher posts one approved item.
type ItemPublisher interface {
	Publish(ctx context.Context, item domain.Item) error
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source          CandidateSource
	Store           ports.ProcessedStore
	Fetcher         ports.ContentFetcher
	Summarizer      ports.Summarizer
	Approval        ports.ApprovalChannel
	Publisher       ItemPublisher
	ApprovalTimeout time.Duration
	DedupeOverride  bool
	Logger          *slog.Logger
}

// Pipeline drives the per-item workflow: dedupe, fetch content, summarize,
// request approval, act on the decision, record the terminal status. Items
// are processed one at a time; a failure in one item never aborts the rest.
type Pipeline struct {
	source          CandidateSource
	store           ports.ProcessedStore
	fetcher         ports.ContentFetcher
	summarizer      ports.Summarizer
	approval        ports.ApprovalChannel
	publisher       ItemPublisher
	approvalTimeout time.Duration
	dedupeOverride  bool
	logger          *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:          deps.Source,
		store:           deps.Store,
		fetcher:         deps.Fetcher,
		summarizer:      deps.Summarizer,
		approval:        deps.Approval,
		publisher:       deps.Publisher,
		approvalTimeout: deps.ApprovalTimeout,
		dedupeOverride:  deps.DedupeOverride,
		logger:          deps.Logger,
	}
}

// ProcessRun executes one full pipeline pass over fresh candidates.
func (p *Pipeline) ProcessRun(ctx context.Context) error {
	items := p.source.FetchAll(ctx)
	p.logger.Info("run started", "candidates", len(items))

	processed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := p.processItem(ctx, item)
		switch {
		case err == nil:
			processed++
		case errors.Is(err, domain.ErrChannelClosed) || errors.Is(err, context.Canceled):
			p.logger.Info("run interrupted by shutdown", "processed", processed)
			return err
		default:
			// Per-item fault isolation: log and move on. No terminal
			// record was written, so the next run picks the item up again.
			p.logger.Error("item pipeline failed", "item", item.ID, "title", item.Title, "error", err)
		}
	}

	p.logger.Info("run finished", "candidates", len(items), "processed", processed)
	return nil
}

func (p *Pipeline) processItem(ctx context.Context, item domain.Item) error {
	done, err := p.store.Has(ctx, item.ID)
	if err != nil {
		if !p.dedupeOverride {
			// Fail closed: an unreadable ledger must not cause a repost.
			return fmt.Errorf("ledger lookup for %s: %w", item.ID, err)
		}
		p.logger.Warn("ledger lookup failed, override active, treating as unprocessed",
			"item", item.ID, "error", err)
	}
	if done {
		p.logger.Debug("item already processed, skipping", "item", item.ID)
		return nil
	}

	body, err := p.fetcher.Fetch(ctx, item.URL)
	if err != nil || body == "" {
		p.logger.Warn("no content for item, skipping", "item", item.ID, "error", err)
		p.record(ctx, item.ID, domain.StatusSkippedNoContent)
		return nil
	}
	item.Content = body

	summary, err := p.summarizer.Summarize(ctx, item)
	if err != nil {
		if domain.IsBlocked(err) {
			p.logger.Warn("summary blocked by provider policy", "item", item.ID, "error", err)
		} else {
			p.logger.Warn("summarization failed", "item", item.ID, "error", err)
		}
		p.record(ctx, item.ID, domain.StatusSkippedNoContent)
		return nil
	}
	item.Summary = summary

	outcome, decided, err := p.approval.RequestApproval(ctx, item, p.approvalTimeout)
	if err != nil {
		return fmt.Errorf("request approval for %s: %w", item.ID, err)
	}

	switch outcome {
	case domain.OutcomeApproved:
		return p.publishApproved(ctx, decided)
	case domain.OutcomeRejected, domain.OutcomeTimedOut:
		// Distinct outcomes, same disposition: not posted.
		p.logger.Info("item not posted", "item", item.ID, "outcome", outcome)
		p.record(ctx, item.ID, domain.StatusIgnored)
		return nil
	default:
		return fmt.Errorf("unexpected approval outcome %q for %s", outcome, item.ID)
	}
}

func (p *Pipeline) publishApproved(ctx context.Context, item domain.Item) error {
	if err := p.publisher.Publish(ctx, item); err != nil {
		p.logger.Error("publish failed", "item", item.ID, "error", err)
		p.record(ctx, item.ID, domain.StatusFailedPublish)
		p.notify(ctx, fmt.Sprintf("Publish failed for %q: %v", item.Title, err))
		return nil
	}
	p.record(ctx, item.ID, domain.StatusPosted)
	return nil
}

// record writes the terminal status. Storage failures threaten the
// at-most-once publish guarantee, so they are pushed to the operator rather
// than swallowed.
func (p *Pipeline) record(ctx context.Context, id string, status domain.Status) {
	if _, err := p.store.Record(ctx, id, status); err != nil {
		p.logger.Error("ledger write failed", "item", id, "status", status, "error", err)
		p.notify(ctx, fmt.Sprintf("Ledger write failed for item %s (%s): %v. The item may be reprocessed next run.", id, status, err))
	}
}

func (p *Pipeline) notify(ctx context.Context, text string) {
	if err := p.approval.Notify(ctx, text); err != nil {
		p.logger.Warn("operator notification failed", "error", err)
	}
}
