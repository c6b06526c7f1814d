package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

// Publisher wraps the publish executor with session lifecycle: login is
// attempted lazily on first use, and a failed login degrades the publisher
// to a disabled state for the remainder of the run instead of crashing.
//
// At-most-once publishing per item is the orchestrator's job (ledger-first
// ordering); the underlying platform has no idempotency key.
type Publisher struct {
	executor ports.PublishExecutor
	prefix   string
	suffix   string
	logger   *slog.Logger

	mu       sync.Mutex
	loggedIn bool
	disabled bool
}

// New wires the executor and the post text decoration.
func New(executor ports.PublishExecutor, prefix, suffix string, logger *slog.Logger) *Publisher {
	return &Publisher{
		executor: executor,
		prefix:   prefix,
		suffix:   suffix,
		logger:   logger,
	}
}

// Publish logs in if needed and posts the item. A disabled publisher fails
// fast with an authentication error.
func (p *Publisher) Publish(ctx context.Context, item domain.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disabled {
		return fmt.Errorf("publisher disabled for this run: %w", domain.ErrAuthentication)
	}

	if !p.loggedIn {
		if err := p.executor.Login(ctx); err != nil {
			p.disabled = true
			p.logger.Error("publish executor login failed, disabling publisher for this run", "error", err)
			return fmt.Errorf("executor login: %w", err)
		}
		p.loggedIn = true
		p.logger.Info("publish executor session established")
	}

	if err := p.executor.Publish(ctx, p.composePost(item)); err != nil {
		return fmt.Errorf("publish %s: %w", item.ID, err)
	}
	p.logger.Info("item published", "item", item.ID, "title", item.Title)
	return nil
}

// Close releases the executor session when one was established.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loggedIn {
		return nil
	}
	p.loggedIn = false
	return p.executor.Close()
}

func (p *Publisher) composePost(item domain.Item) string {
	var b strings.Builder
	if p.prefix != "" {
		b.WriteString(p.prefix)
		b.WriteString("\n\n")
	}
	b.WriteString(item.Summary)
	fmt.Fprintf(&b, "\n\nRead more: %s", item.URL)
	if p.suffix != "" {
		b.WriteString("\n\n")
		b.WriteString(p.suffix)
	}
	return b.String()
}
