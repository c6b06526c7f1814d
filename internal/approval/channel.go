package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

// Actions embedded in button payloads as "action:correlation_id".
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionEdit    = "edit"
)

const cancelToken = "/cancel"

// Channel turns a one-shot "ask a human" call into an awaitable value over a
// shared asynchronous transport. One Channel serves any number of
// concurrently outstanding requests; correlation ids keep them isolated.
type Channel struct {
	transport Transport
	table     *table
	logger    *slog.Logger

	closeOnce sync.Once
	closedMu  sync.RWMutex
	closed    bool
}

var _ ports.ApprovalChannel = (*Channel)(nil)

// NewChannel wires a transport. Call Run in its own goroutine before the
// first RequestApproval.
func NewChannel(transport Transport, logger *slog.Logger) *Channel {
	return &Channel{
		transport: transport,
		table:     newTable(),
		logger:    logger,
	}
}

// RequestApproval registers a waiter, emits the prompt, and blocks until a
// correlated terminal event arrives, the timeout elapses, or ctx is
// cancelled. A decision observed before the deadline always beats a timer
// that fires at the same instant.
func (c *Channel) RequestApproval(ctx context.Context, item domain.Item, timeout time.Duration) (domain.Outcome, domain.Item, error) {
	if c.isClosed() {
		return domain.OutcomeTimedOut, item, domain.ErrChannelClosed
	}

	id := uuid.NewString()
	w := c.table.add(id, item)

	if err := c.transport.SendPrompt(ctx, promptText(item), promptButtons(id)); err != nil {
		c.table.remove(id)
		return domain.OutcomeTimedOut, item, fmt.Errorf("send approval prompt: %w", err)
	}
	c.logger.Info("approval requested", "correlation_id", id, "item", item.ID, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.done:
		return res.outcome, res.item, nil
	case <-timer.C:
		// The listener may have resolved this waiter between the timer
		// firing and us getting scheduled; the decision wins.
		if !c.table.expire(id, domain.OutcomeTimedOut) {
			res := <-w.done
			return res.outcome, res.item, nil
		}
		res := <-w.done
		c.logger.Info("approval timed out", "correlation_id", id, "item", item.ID)
		return res.outcome, res.item, nil
	case <-ctx.Done():
		if !c.table.expire(id, domain.OutcomeTimedOut) {
			res := <-w.done
			return res.outcome, res.item, nil
		}
		res := <-w.done
		return res.outcome, res.item, ctx.Err()
	}
}

// Notify pushes a plain operator message over the transport.
func (c *Channel) Notify(ctx context.Context, text string) error {
	return c.transport.SendNotice(ctx, text)
}

// Run is the single long-lived inbound listener. It owns all correlation
// table mutation triggered by operator events and must run concurrently
// with waiters. Returns when the transport closes or ctx is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.transport.Events():
			if !ok {
				return nil
			}
			c.handleEvent(ctx, ev)
		}
	}
}

// Close stops accepting new requests, force-resolves in-flight waiters to
// TIMED_OUT, and shuts the transport.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		if n := c.table.drain(domain.OutcomeTimedOut); n > 0 {
			c.logger.Warn("force-resolved pending approvals on shutdown", "count", n)
		}
		err = c.transport.Close()
	})
	return err
}

// Pending reports the number of live waiters.
func (c *Channel) Pending() int { return c.table.size() }

func (c *Channel) isClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *Channel) handleEvent(ctx context.Context, ev Event) {
	if ev.Payload != "" {
		c.handleCallback(ctx, ev)
		return
	}
	if ev.Text != "" {
		c.handleText(ctx, ev)
	}
}

func (c *Channel) handleCallback(ctx context.Context, ev Event) {
	action, id, err := ParsePayload(ev.Payload)
	if err != nil {
		c.logger.Warn("discarding unparseable callback", "payload", ev.Payload, "error", err)
		c.ack(ctx, ev.CallbackID, "Unrecognized action.")
		return
	}

	switch action {
	case ActionApprove:
		c.resolveDecision(ctx, ev, id, domain.OutcomeApproved, "Approved, publishing.")
	case ActionReject:
		c.resolveDecision(ctx, ev, id, domain.OutcomeRejected, "Rejected.")
	case ActionEdit:
		if !c.table.beginEdit(id, ev.Sender) {
			c.ack(ctx, ev.CallbackID, "Expired or already handled.")
			return
		}
		c.ack(ctx, ev.CallbackID, "Editing.")
		c.notice(ctx, "Send the new summary as a message, or /cancel to keep the current one.")
	default:
		c.logger.Warn("discarding unknown action", "action", action, "correlation_id", id)
		c.ack(ctx, ev.CallbackID, "Unrecognized action.")
	}
}

func (c *Channel) resolveDecision(ctx context.Context, ev Event, id string, outcome domain.Outcome, ackText string) {
	switch c.table.decide(id, outcome) {
	case decisionResolved:
		c.logger.Info("approval resolved", "correlation_id", id, "outcome", outcome)
		c.ack(ctx, ev.CallbackID, ackText)
	case decisionEditing:
		c.ack(ctx, ev.CallbackID, "Send the edited summary first, or /cancel.")
	default:
		// Duplicate press or a response after the deadline already fired.
		c.logger.Debug("discarding stale callback", "correlation_id", id, "outcome", outcome)
		c.ack(ctx, ev.CallbackID, "Expired or already handled.")
	}
}

func (c *Channel) handleText(ctx context.Context, ev Event) {
	if _, ok := c.table.editTarget(ev.Sender); !ok {
		return // chat noise outside any edit session
	}

	if strings.TrimSpace(ev.Text) == cancelToken {
		item, id, ok := c.table.cancelEdit(ev.Sender)
		if !ok {
			return
		}
		c.logger.Info("edit cancelled", "correlation_id", id)
		c.reissue(ctx, item, id)
		return
	}

	item, id, ok := c.table.applyEdit(ev.Sender, strings.TrimSpace(ev.Text))
	if !ok {
		return
	}
	c.logger.Info("summary edited", "correlation_id", id, "item", item.ID)
	c.reissue(ctx, item, id)
}

// reissue sends the approval prompt again under the same correlation id.
func (c *Channel) reissue(ctx context.Context, item domain.Item, id string) {
	if err := c.transport.SendPrompt(ctx, promptText(item), promptButtons(id)); err != nil {
		c.logger.Error("re-issue prompt failed", "correlation_id", id, "error", err)
	}
}

func (c *Channel) ack(ctx context.Context, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if err := c.transport.AckCallback(ctx, callbackID, text); err != nil {
		c.logger.Warn("callback ack failed", "error", err)
	}
}

func (c *Channel) notice(ctx context.Context, text string) {
	if err := c.transport.SendNotice(ctx, text); err != nil {
		c.logger.Warn("notice failed", "error", err)
	}
}

func promptText(item domain.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Title:* %s\n", item.Title)
	if item.Source != "" {
		fmt.Fprintf(&b, "*Source:* %s\n", item.Source)
	}
	fmt.Fprintf(&b, "\n*Summary:*\n%s\n\n%s", item.Summary, item.URL)
	return b.String()
}

func promptButtons(id string) []Button {
	return []Button{
		{Label: "✅ Approve", Payload: ActionApprove + ":" + id},
		{Label: "❌ Reject", Payload: ActionReject + ":" + id},
		{Label: "✏️ Edit", Payload: ActionEdit + ":" + id},
	}
}

// ParsePayload splits "action:correlation_id" callback data.
func ParsePayload(payload string) (action, id string, err error) {
	action, id, ok := strings.Cut(payload, ":")
	if !ok || action == "" || id == "" {
		return "", "", fmt.Errorf("malformed payload %q", payload)
	}
	return action, id, nil
}
