package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PostPilot/internal/domain"
)

type fakeSource struct {
	items []domain.Item
}

func (f *fakeSource) FetchAll(context.Context) []domain.Item { return f.items }

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]domain.Status
	hasErr   error
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]domain.Status{}}
}

func (f *fakeStore) Has(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasErr != nil {
		return false, f.hasErr
	}
	_, ok := f.records[id]
	return ok, nil
}

func (f *fakeStore) Record(_ context.Context, id string, status domain.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return false, f.writeErr
	}
	if _, ok := f.records[id]; ok {
		return false, nil
	}
	f.records[id] = status
	return true, nil
}

func (f *fakeStore) status(id string) (domain.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.records[id]
	return s, ok
}

type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) { return f.body, f.err }

type fakeSummarizer struct {
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, item domain.Item) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + item.Title, nil
}

type fakeApproval struct {
	outcomes map[string]domain.Outcome // item id → scripted decision
	editTo   string                    // when set, approved items get this summary
	notices  []string
	calls    int
}

func (f *fakeApproval) RequestApproval(_ context.Context, item domain.Item, _ time.Duration) (domain.Outcome, domain.Item, error) {
	f.calls++
	outcome, ok := f.outcomes[item.ID]
	if !ok {
		outcome = domain.OutcomeTimedOut
	}
	if outcome == domain.OutcomeApproved && f.editTo != "" {
		item.Summary = f.editTo
	}
	return outcome, item, nil
}

func (f *fakeApproval) Notify(_ context.Context, text string) error {
	f.notices = append(f.notices, text)
	return nil
}

type fakePublisher struct {
	err    error
	posted []domain.Item
}

func (f *fakePublisher) Publish(_ context.Context, item domain.Item) error {
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, item)
	return nil
}

type pipelineFixture struct {
	source     *fakeSource
	store      *fakeStore
	fetcher    *fakeFetcher
	summarizer *fakeSummarizer
	approval   *fakeApproval
	publisher  *fakePublisher
	pipeline   *Pipeline
}

func newFixture(items ...domain.Item) *pipelineFixture {
	fx := &pipelineFixture{
		source:     &fakeSource{items: items},
		store:      newFakeStore(),
		fetcher:    &fakeFetcher{body: "article body"},
		summarizer: &fakeSummarizer{},
		approval:   &fakeApproval{outcomes: map[string]domain.Outcome{}},
		publisher:  &fakePublisher{},
	}
	fx.pipeline = NewPipeline(PipelineDeps{
		Source:          fx.source,
		Store:           fx.store,
		Fetcher:         fx.fetcher,
		Summarizer:      fx.summarizer,
		Approval:        fx.approval,
		Publisher:       fx.publisher,
		ApprovalTimeout: time.Minute,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return fx
}

func TestApprovedItemIsPublishedAndRecorded(t *testing.T) {
	t.Parallel()

	item := domain.NewItem("New Article", "https://example.org/new", "test")
	fx := newFixture(item)
	fx.approval.outcomes[item.ID] = domain.OutcomeApproved

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	require.Len(t, fx.publisher.posted, 1)
	status, ok := fx.store.status(item.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusPosted, status)
}

func TestAlreadyProcessedItemIsSkippedEntirely(t *testing.T) {
	t.Parallel()

	fresh := domain.NewItem("Fresh", "https://example.org/fresh", "test")
	stale := domain.NewItem("Stale", "https://example.org/stale", "test")

	fx := newFixture(fresh, stale)
	fx.approval.outcomes[fresh.ID] = domain.OutcomeApproved
	_, err := fx.store.Record(context.Background(), stale.ID, domain.StatusIgnored)
	require.NoError(t, err)

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	require.Equal(t, 1, fx.summarizer.calls, "stale item must not reach the summarizer")
	require.Equal(t, 1, fx.approval.calls, "stale item must not reach approval")
	require.Len(t, fx.publisher.posted, 1)

	status, _ := fx.store.status(stale.ID)
	require.Equal(t, domain.StatusIgnored, status, "prior record unchanged")
}

func TestPublishAtMostOncePerIdentity(t *testing.T) {
	t.Parallel()

	// Same identity appearing twice in the candidate list (pre-dedupe feed);
	// the ledger write after the first pass blocks the second.
	one := domain.NewItem("Story", "https://example.org/story", "hn")
	two := domain.NewItem("Story", "https://example.org/story#frag", "tc")
	require.Equal(t, one.ID, two.ID)

	fx := newFixture(one, two)
	fx.approval.outcomes[one.ID] = domain.OutcomeApproved

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))
	require.Len(t, fx.publisher.posted, 1)
}

func TestRejectedAndTimedOutRecordIgnored(t *testing.T) {
	t.Parallel()

	rejected := domain.NewItem("Rejected", "https://example.org/rejected", "test")
	expired := domain.NewItem("Expired", "https://example.org/expired", "test")

	fx := newFixture(rejected, expired)
	fx.approval.outcomes[rejected.ID] = domain.OutcomeRejected
	fx.approval.outcomes[expired.ID] = domain.OutcomeTimedOut

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))
	require.Empty(t, fx.publisher.posted)

	for _, id := range []string{rejected.ID, expired.ID} {
		status, ok := fx.store.status(id)
		require.True(t, ok)
		require.Equal(t, domain.StatusIgnored, status)
	}
}

func TestEditedSummaryIsPublished(t *testing.T) {
	t.Parallel()

	item := domain.NewItem("Edited", "https://example.org/edited", "test")
	fx := newFixture(item)
	fx.approval.outcomes[item.ID] = domain.OutcomeApproved
	fx.approval.editTo = "new summary text"

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	require.Len(t, fx.publisher.posted, 1)
	require.Equal(t, "new summary text", fx.publisher.posted[0].Summary)
	status, _ := fx.store.status(item.ID)
	require.Equal(t, domain.StatusPosted, status)
}

func TestMissingContentRecordsSkipped(t *testing.T) {
	t.Parallel()

	item := domain.NewItem("Empty", "https://example.org/empty", "test")
	fx := newFixture(item)
	fx.fetcher.body = ""

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	require.Equal(t, 0, fx.summarizer.calls)
	require.Equal(t, 0, fx.approval.calls)
	status, _ := fx.store.status(item.ID)
	require.Equal(t, domain.StatusSkippedNoContent, status)
}

func TestSummarizerFailureRecordsSkipped(t *testing.T) {
	t.Parallel()

	item := domain.NewItem("Blocked", "https://example.org/blocked", "test")
	fx := newFixture(item)
	fx.summarizer.err = fmt.Errorf("refused: %w", domain.ErrContentBlocked)

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	require.Equal(t, 0, fx.approval.calls)
	status, _ := fx.store.status(item.ID)
	require.Equal(t, domain.StatusSkippedNoContent, status)
}

func TestPublishFailureRecordsAndNotifies(t *testing.T) {
	t.Parallel()

	item := domain.NewItem("Doomed", "https://example.org/doomed", "test")
	fx := newFixture(item)
	fx.approval.outcomes[item.ID] = domain.OutcomeApproved
	fx.publisher.err = fmt.Errorf("session lost")

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	status, _ := fx.store.status(item.ID)
	require.Equal(t, domain.StatusFailedPublish, status)
	require.Len(t, fx.approval.notices, 1)
	require.Contains(t, fx.approval.notices[0], "Publish failed")
}

func TestLedgerLookupFailureFailsClosed(t *testing.T) {
	t.Parallel()

	item := domain.NewItem("Unknown", "https://example.org/unknown", "test")
	fx := newFixture(item)
	fx.store.hasErr = fmt.Errorf("ledger offline")

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	require.Equal(t, 0, fx.summarizer.calls, "item must not proceed when dedupe is unavailable")
	require.Empty(t, fx.publisher.posted)
}

func TestLedgerWriteFailureIsSurfaced(t *testing.T) {
	t.Parallel()

	item := domain.NewItem("Writable", "https://example.org/writable", "test")
	fx := newFixture(item)
	fx.approval.outcomes[item.ID] = domain.OutcomeRejected
	fx.store.writeErr = fmt.Errorf("disk full")

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))

	require.Len(t, fx.approval.notices, 1)
	require.Contains(t, fx.approval.notices[0], "Ledger write failed")
}

func TestItemFaultDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	// First item hits a ledger lookup failure, second proceeds normally.
	bad := domain.NewItem("Bad", "https://example.org/bad", "test")
	good := domain.NewItem("Good", "https://example.org/good", "test")

	fx := newFixture(bad, good)
	fx.approval.outcomes[good.ID] = domain.OutcomeApproved

	// Ledger lookup fails only for the first item.
	backing := fx.store
	fx.pipeline.store = storeFunc(func(ctx context.Context, id string) (bool, error) {
		if id == bad.ID {
			return false, fmt.Errorf("flaky")
		}
		return backing.Has(ctx, id)
	}, backing.Record)

	require.NoError(t, fx.pipeline.ProcessRun(context.Background()))
	require.Len(t, fx.publisher.posted, 1)
	require.Equal(t, good.ID, fx.publisher.posted[0].ID)
}

type storeFuncImpl struct {
	has    func(context.Context, string) (bool, error)
	record func(context.Context, string, domain.Status) (bool, error)
}

func storeFunc(
	has func(context.Context, string) (bool, error),
	record func(context.Context, string, domain.Status) (bool, error),
) *storeFuncImpl {
	return &storeFuncImpl{has: has, record: record}
}

func (s *storeFuncImpl) Has(ctx context.Context, id string) (bool, error) { return s.has(ctx, id) }

func (s *storeFuncImpl) Record(ctx context.Context, id string, status domain.Status) (bool, error) {
	return s.record(ctx, id, status)
}
