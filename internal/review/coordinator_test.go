package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/chat"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/reviewstore"
	"github.com/joescharf/triage/internal/tracker"
)

// fakeMessenger records chat calls.
type fakeMessenger struct {
	mu      sync.Mutex
	posts   []chat.Message
	updates []chat.Message
	postErr error
}

func (f *fakeMessenger) PostMessage(_ context.Context, channel string, msg chat.Message) (models.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return models.MessageRef{}, f.postErr
	}
	f.posts = append(f.posts, msg)
	return models.MessageRef{Channel: channel, Timestamp: "1725.0001"}, nil
}

func (f *fakeMessenger) UpdateMessage(_ context.Context, _ models.MessageRef, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, msg)
	return nil
}

func (f *fakeMessenger) PostEphemeral(context.Context, string, string, string) error { return nil }

// fakeBackend counts create calls and scripts results.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []models.IssuePayload
	nextErr error
	nextID  string
}

func (f *fakeBackend) CreateIssue(_ context.Context, payload models.IssuePayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payload)
	if f.nextErr != nil {
		return "", f.nextErr
	}
	if f.nextID != "" {
		return f.nextID, nil
	}
	return "ISS-1", nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// flakyStore wraps a Store and fails Put on demand.
type flakyStore struct {
	reviewstore.Store
	putErr error
}

func (f *flakyStore) Put(ctx context.Context, r *models.ReviewRequest, ttl time.Duration) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, r, ttl)
}

type fixture struct {
	store     *reviewstore.MemoryStore
	messenger *fakeMessenger
	backend   *fakeBackend
	coord     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := reviewstore.NewMemoryStore()
	messenger := &fakeMessenger{}
	backend := &fakeBackend{}
	tc := tracker.NewClient(backend, nil, tracker.WithDelays(time.Millisecond, 2*time.Millisecond, time.Millisecond))
	return &fixture{
		store:     store,
		messenger: messenger,
		backend:   backend,
		coord:     NewCoordinator(store, tc, messenger, "C123", 30*time.Minute, nil),
	}
}

func twoItems() ([]models.ActionItem, []models.IssuePayload) {
	items := []models.ActionItem{
		{Title: "Follow up with ACME", Description: "Send revised quote", Priority: models.PriorityHigh},
		{Title: "Schedule demo", Priority: models.PriorityMedium},
	}
	payloads := []models.IssuePayload{
		{Title: "Follow up with ACME", TeamID: "T1", Priority: models.PriorityHigh},
		{Title: "Schedule demo", TeamID: "T1", Priority: models.PriorityMedium},
	}
	return items, payloads
}

func TestPostReviewPersistsAndPosts(t *testing.T) {
	f := newFixture(t)
	items, payloads := twoItems()

	id, err := f.coord.PostReview(context.Background(), items, payloads)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, f.messenger.posts, 1)

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.PendingCount())
	require.NotNil(t, stored.Message)
	assert.Equal(t, "C123", stored.Message.Channel)
}

func TestPostReviewMessageFailureIsHard(t *testing.T) {
	f := newFixture(t)
	f.messenger.postErr = errors.New("channel_not_found")
	items, payloads := twoItems()

	_, err := f.coord.PostReview(context.Background(), items, payloads)
	assert.ErrorContains(t, err, "post review message")
}

func TestPostReviewRejectsMismatchedLengths(t *testing.T) {
	f := newFixture(t)
	items, _ := twoItems()

	_, err := f.coord.PostReview(context.Background(), items, []models.IssuePayload{{Title: "only one"}})
	assert.ErrorContains(t, err, "mismatch")
	assert.Empty(t, f.messenger.posts)
}

func TestPostReviewPersistenceFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.coord.store = &flakyStore{Store: f.store, putErr: errors.New("store down")}
	items, payloads := twoItems()

	_, err := f.coord.PostReview(context.Background(), items, payloads)
	assert.ErrorContains(t, err, "persist review")
	// Message was still posted; this is the degraded lost-state path.
	assert.Len(t, f.messenger.posts, 1)
}

func TestSingleItemApproveThenDuplicate(t *testing.T) {
	f := newFixture(t)
	f.backend.nextID = "ISS-7"
	ctx := context.Background()

	id, err := f.coord.PostReview(ctx,
		[]models.ActionItem{{Title: "Follow up with ACME", Priority: models.PriorityHigh}},
		[]models.IssuePayload{{Title: "Follow up with ACME", TeamID: "T1"}})
	require.NoError(t, err)

	out := f.coord.HandleAction(ctx, id, 0, Approve)
	assert.Equal(t, OutcomeSuccess, out.Status)
	assert.Equal(t, "ISS-7", out.IssueID)
	assert.Equal(t, 1, f.backend.callCount())

	// Fully resolved reviews are deleted, so the duplicate click reports
	// not-found rather than already-processed.
	out = f.coord.HandleAction(ctx, id, 0, Approve)
	assert.Equal(t, OutcomeNotFound, out.Status)
	assert.Equal(t, 1, f.backend.callCount())
}

func TestDuplicateActionOnUnresolvedReview(t *testing.T) {
	f := newFixture(t)
	f.backend.nextID = "ISS-3"
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	out := f.coord.HandleAction(ctx, id, 0, Approve)
	require.Equal(t, OutcomeSuccess, out.Status)

	// Index 1 still pending, so the review survives; a second action on
	// index 0 is idempotent and creates nothing.
	out = f.coord.HandleAction(ctx, id, 0, Approve)
	assert.Equal(t, OutcomeAlreadyProcessed, out.Status)
	assert.Equal(t, "ISS-3", out.IssueID)
	assert.Equal(t, 1, f.backend.callCount())

	out = f.coord.HandleAction(ctx, id, 0, Reject)
	assert.Equal(t, OutcomeAlreadyProcessed, out.Status)
	assert.Equal(t, 1, f.backend.callCount())
}

func TestRejectNeverCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	out := f.coord.HandleAction(ctx, id, 0, Reject)
	assert.Equal(t, OutcomeSuccess, out.Status)
	assert.Empty(t, out.IssueID)
	assert.Equal(t, 0, f.backend.callCount())

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ItemRejected, stored.States[0].Status)
	assert.Equal(t, models.ItemPending, stored.States[1].Status)
}

func TestRejectThenApproveResolvesAndCleansUp(t *testing.T) {
	f := newFixture(t)
	f.backend.nextID = "ISS-9"
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	require.Equal(t, OutcomeSuccess, f.coord.HandleAction(ctx, id, 0, Reject).Status)
	out := f.coord.HandleAction(ctx, id, 1, Approve)
	require.Equal(t, OutcomeSuccess, out.Status)
	assert.Equal(t, "ISS-9", out.IssueID)

	// Exactly one create call, and only for index 1's payload.
	require.Equal(t, 1, f.backend.callCount())
	assert.Equal(t, "Schedule demo", f.backend.calls[0].Title)

	// Resolved review is removed from the store.
	_, err = f.store.Get(ctx, id)
	assert.ErrorIs(t, err, reviewstore.ErrNotFound)

	// Final rendered message shows both terminal states.
	require.NotEmpty(t, f.messenger.updates)
	final := f.messenger.updates[len(f.messenger.updates)-1]
	assert.Contains(t, blocksText(final), "Rejected")
	assert.Contains(t, blocksText(final), "ISS-9")
}

func TestBackendFailureKeepsItemRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	f.backend.nextErr = &tracker.APIError{StatusCode: 503, Body: "overloaded"}
	out := f.coord.HandleAction(ctx, id, 0, Approve)
	assert.Equal(t, OutcomeApprovalFailed, out.Status)
	require.Error(t, out.Err)

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ItemPending, stored.States[0].Status)

	// Retry after the backend recovers.
	f.backend.nextErr = nil
	f.backend.nextID = "ISS-4"
	out = f.coord.HandleAction(ctx, id, 0, Approve)
	assert.Equal(t, OutcomeSuccess, out.Status)
	assert.Equal(t, "ISS-4", out.IssueID)
}

func TestHandleActionNotFound(t *testing.T) {
	f := newFixture(t)

	out := f.coord.HandleAction(context.Background(), "no-such-review", 0, Approve)
	assert.Equal(t, OutcomeNotFound, out.Status)
	assert.Equal(t, 0, f.backend.callCount())
}

func TestHandleActionIndexOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	assert.Equal(t, OutcomeError, f.coord.HandleAction(ctx, id, 5, Approve).Status)
	assert.Equal(t, OutcomeError, f.coord.HandleAction(ctx, id, -1, Reject).Status)
	assert.Equal(t, 0, f.backend.callCount())
}

func TestActionDoesNotExtendTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	// Backdate the review 20 minutes into its 30 minute window.
	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	stored.CreatedAt = time.Now().UTC().Add(-20 * time.Minute)
	require.NoError(t, f.store.Put(ctx, stored, 10*time.Minute))

	out := f.coord.HandleAction(ctx, id, 0, Reject)
	require.Equal(t, OutcomeSuccess, out.Status)

	// The re-persisted record must expire at the original deadline
	// (~10 minutes out), not 30 minutes from the action.
	setMemoryClock(f.store, time.Now().Add(11*time.Minute))
	_, err = f.store.Get(ctx, id)
	assert.ErrorIs(t, err, reviewstore.ErrNotFound)
}

func TestExpiredReviewIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	setMemoryClock(f.store, time.Now().Add(31*time.Minute))
	out := f.coord.HandleAction(ctx, id, 0, Approve)
	assert.Equal(t, OutcomeNotFound, out.Status)
	assert.Equal(t, 0, f.backend.callCount())
}

func TestPersistFailureAfterActionIsAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	f.coord.store = &flakyStore{Store: f.store, putErr: errors.New("store down")}
	out := f.coord.HandleAction(ctx, id, 0, Reject)
	assert.Equal(t, OutcomeError, out.Status)
	assert.ErrorContains(t, out.Err, "persist review")

	// The store still holds the item as pending; the message must mirror
	// that, keeping the buttons, instead of showing the unpersisted decision.
	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ItemPending, stored.States[0].Status)

	require.NotEmpty(t, f.messenger.updates)
	last := f.messenger.updates[len(f.messenger.updates)-1]
	assert.NotContains(t, blocksText(last), "Rejected")
	buttons := 0
	for _, b := range last.Blocks {
		buttons += len(b.Elements)
	}
	assert.Equal(t, 4, buttons, "both items should still offer approve/reject")
}

func TestApprovePushesProcessingUpdate(t *testing.T) {
	f := newFixture(t)
	f.backend.nextID = "ISS-5"
	ctx := context.Background()
	items, payloads := twoItems()

	id, err := f.coord.PostReview(ctx, items, payloads)
	require.NoError(t, err)

	out := f.coord.HandleAction(ctx, id, 0, Approve)
	require.Equal(t, OutcomeSuccess, out.Status)

	// First update is the optimistic processing render, second the final one.
	require.Len(t, f.messenger.updates, 2)
	assert.Contains(t, blocksText(f.messenger.updates[0]), "Creating issue")
	assert.Contains(t, blocksText(f.messenger.updates[1]), "ISS-5")
}

func setMemoryClock(store *reviewstore.MemoryStore, at time.Time) {
	store.SetNow(func() time.Time { return at })
}

// blocksText flattens a message's section text for assertions.
func blocksText(msg chat.Message) string {
	var out string
	for _, b := range msg.Blocks {
		if b.Text != nil {
			out += b.Text.Text + "\n"
		}
	}
	return out
}
