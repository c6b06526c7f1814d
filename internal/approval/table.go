package approval

import (
	"sync"

	"PostPilot/internal/domain"
)

type waiterState int

const (
	statePending waiterState = iota
	stateEditWait
)

type result struct {
	outcome domain.Outcome
	item    domain.Item
}

// waiter is one outstanding approval request. done is buffered so the
// resolver never blocks; the resolved flag guarantees a single send.
type waiter struct {
	id       string
	item     domain.Item
	state    waiterState
	resolved bool
	done     chan result
}

type decisionStatus int

const (
	decisionResolved decisionStatus = iota
	decisionUnknown
	decisionEditing
)

// table is the live correlation store: correlation id → pending waiter,
// plus the per-sender edit sessions scoped to it. All mutation happens
// under one mutex; waiters only ever read their own done channel.
type table struct {
	mu      sync.Mutex
	waiters map[string]*waiter
	edits   map[string]string // sender → correlation id in EDIT_WAIT
}

func newTable() *table {
	return &table{
		waiters: make(map[string]*waiter),
		edits:   make(map[string]string),
	}
}

func (t *table) add(id string, item domain.Item) *waiter {
	w := &waiter{id: id, item: item, done: make(chan result, 1)}
	t.mu.Lock()
	t.waiters[id] = w
	t.mu.Unlock()
	return w
}

// decide resolves a pending waiter with a human decision. Waiters in
// EDIT_WAIT are not resolvable by ordinary decisions.
func (t *table) decide(id string, outcome domain.Outcome) decisionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.waiters[id]
	if !ok || w.resolved {
		return decisionUnknown
	}
	if w.state == stateEditWait {
		return decisionEditing
	}

	t.finish(w, outcome)
	return decisionResolved
}

// expire force-resolves a waiter to the given outcome regardless of state.
// Returns false when someone already resolved it, in which case the real
// result is sitting in the done channel.
func (t *table) expire(id string, outcome domain.Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.waiters[id]
	if !ok || w.resolved {
		return false
	}
	t.finish(w, outcome)
	return true
}

// remove discards a waiter that never got a prompt out (send failure).
func (t *table) remove(id string) {
	t.mu.Lock()
	delete(t.waiters, id)
	t.mu.Unlock()
}

// finish must be called with the lock held.
func (t *table) finish(w *waiter, outcome domain.Outcome) {
	w.resolved = true
	w.done <- result{outcome: outcome, item: w.item}
	delete(t.waiters, w.id)
	for sender, id := range t.edits {
		if id == w.id {
			delete(t.edits, sender)
		}
	}
}

// beginEdit moves a pending waiter into EDIT_WAIT and binds the sender's
// next free-text message to it.
func (t *table) beginEdit(id, sender string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.waiters[id]
	if !ok || w.resolved || w.state == stateEditWait {
		return false
	}
	w.state = stateEditWait
	t.edits[sender] = id
	return true
}

// editTarget returns the correlation id the sender's edit session points at.
func (t *table) editTarget(sender string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.edits[sender]
	return id, ok
}

// applyEdit replaces the summary and re-enters PENDING. Returns the revised
// item for prompt re-issue.
func (t *table) applyEdit(sender, summary string) (domain.Item, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.edits[sender]
	if !ok {
		return domain.Item{}, "", false
	}
	w, ok := t.waiters[id]
	if !ok || w.resolved {
		delete(t.edits, sender)
		return domain.Item{}, "", false
	}

	w.item.Summary = summary
	w.state = statePending
	delete(t.edits, sender)
	return w.item, id, true
}

// cancelEdit aborts the edit sub-flow without mutation.
func (t *table) cancelEdit(sender string) (domain.Item, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.edits[sender]
	if !ok {
		return domain.Item{}, "", false
	}
	w, ok := t.waiters[id]
	if !ok || w.resolved {
		delete(t.edits, sender)
		return domain.Item{}, "", false
	}

	w.state = statePending
	delete(t.edits, sender)
	return w.item, id, true
}

// drain force-resolves every live waiter; used on shutdown.
func (t *table) drain(outcome domain.Outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, w := range t.waiters {
		if !w.resolved {
			t.finish(w, outcome)
			n++
		}
	}
	return n
}

func (t *table) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
