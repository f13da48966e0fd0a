// Package review owns the human approval lifecycle for extracted action
// items: posting the review message, recording per-item decisions, creating
// tracker issues for approved items, and keeping the message in sync with
// stored state.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/triage/internal/chat"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/reviewstore"
	"github.com/joescharf/triage/internal/tracker"
)

// DefaultTTL bounds how long a review stays actionable.
const DefaultTTL = 30 * time.Minute

// OutcomeStatus classifies the result of HandleAction.
type OutcomeStatus string

const (
	// OutcomeSuccess: the decision was recorded (and the issue created, on
	// approve).
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeNotFound: the review is missing or expired.
	OutcomeNotFound OutcomeStatus = "not_found"
	// OutcomeAlreadyProcessed: the item had already been decided; nothing
	// changed and no issue was created.
	OutcomeAlreadyProcessed OutcomeStatus = "already_processed"
	// OutcomeApprovalFailed: issue creation failed after retries; the item
	// stays pending and the click may be retried.
	OutcomeApprovalFailed OutcomeStatus = "approval_failed"
	// OutcomeError: invalid input or a persistence failure.
	OutcomeError OutcomeStatus = "error"
)

// Outcome is the result of one user action on one review item.
type Outcome struct {
	Status  OutcomeStatus
	IssueID string
	Err     error
}

// Decision is a user's disposition for one item.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// Coordinator drives the review lifecycle. It is stateless: all review
// state lives in the store, so concurrent invocations for the same review
// coordinate only through it. The store contract has no conditional write,
// so a true concurrent double-click can in the worst case pass the pending
// check twice and create two issues; the optimistic "processing" message
// update narrows that window but does not close it.
type Coordinator struct {
	store   reviewstore.Store
	tracker *tracker.Client
	chat    chat.Messenger
	channel string
	ttl     time.Duration
	logger  *slog.Logger

	newID func() string
}

// NewCoordinator wires the coordinator's collaborators. ttl <= 0 selects
// DefaultTTL.
func NewCoordinator(store reviewstore.Store, tc *tracker.Client, messenger chat.Messenger, channel string, ttl time.Duration, logger *slog.Logger) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		tracker: tc,
		chat:    messenger,
		channel: channel,
		ttl:     ttl,
		logger:  logger,
		newID:   newReviewID,
	}
}

// newReviewID generates a time-ordered ID with a random suffix. Collision
// resistance is all that's needed; these are not secrets.
func newReviewID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// PostReview posts a new review message for the given items and persists the
// review with the configured TTL. Items and payloads must be index-aligned
// and non-empty.
func (c *Coordinator) PostReview(ctx context.Context, items []models.ActionItem, payloads []models.IssuePayload) (string, error) {
	r, err := models.NewReviewRequest(c.newID(), items, payloads)
	if err != nil {
		return "", err
	}

	ref, err := c.chat.PostMessage(ctx, c.channel, RenderReview(r))
	if err != nil {
		return "", fmt.Errorf("post review message: %w", err)
	}
	r.Message = &ref

	if err := c.store.Put(ctx, r, c.ttl); err != nil {
		// The message is live but its buttons can never resolve. This is a
		// lost-state condition, not an ordinary miss.
		c.logger.Error("review state lost: persisted message has no stored review",
			"review_id", r.ID, "channel", ref.Channel, "error", err)
		return "", fmt.Errorf("persist review %s: %w", r.ID, err)
	}

	c.logger.Info("review posted", "review_id", r.ID, "items", len(items), "channel", ref.Channel)
	return r.ID, nil
}

// HandleAction applies one approve/reject decision to one item. Safe to call
// repeatedly: a second action on a decided item reports AlreadyProcessed and
// never creates a second issue.
func (c *Coordinator) HandleAction(ctx context.Context, reviewID string, index int, decision Decision) Outcome {
	r, err := c.store.Get(ctx, reviewID)
	if errors.Is(err, reviewstore.ErrNotFound) {
		return Outcome{Status: OutcomeNotFound}
	}
	if err != nil {
		c.logger.Error("review lookup failed", "review_id", reviewID, "error", err)
		return Outcome{Status: OutcomeError, Err: err}
	}

	if index < 0 || index >= len(r.States) {
		return Outcome{Status: OutcomeError, Err: fmt.Errorf("item index %d out of range for review %s", index, reviewID)}
	}

	if r.States[index].Status.Terminal() {
		return Outcome{Status: OutcomeAlreadyProcessed, IssueID: r.States[index].IssueID}
	}

	switch decision {
	case Reject:
		r.States[index].Status = models.ItemRejected
	case Approve:
		// Show "processing" before the create call so a second click during
		// the call sees non-pending UI. Best-effort; the stored state check
		// above remains the authoritative guard.
		c.pushRender(ctx, r, renderProcessing(r, index))

		issueID, err := c.tracker.CreateOne(ctx, r.Payloads[index])
		if err != nil {
			// Leave the item pending so the user can retry, and restore the
			// message from authoritative state.
			c.logger.Error("issue create failed", "review_id", reviewID, "index", index, "error", err)
			c.pushRender(ctx, r, RenderReview(r))
			return Outcome{Status: OutcomeApprovalFailed, Err: err}
		}
		r.States[index].Status = models.ItemApproved
		r.States[index].IssueID = issueID
	default:
		return Outcome{Status: OutcomeError, Err: fmt.Errorf("unknown decision %q", decision)}
	}

	if persistErr := c.persistAfterAction(ctx, r); persistErr != nil {
		// The store still holds the item as pending. Render that state, not
		// the unpersisted decision, so the buttons stay usable for a retry.
		issueID := r.States[index].IssueID
		r.States[index] = models.ItemState{Status: models.ItemPending}
		c.pushRender(ctx, r, RenderReview(r))
		return Outcome{Status: OutcomeError, IssueID: issueID, Err: persistErr}
	}

	c.pushRender(ctx, r, RenderReview(r))
	return Outcome{Status: OutcomeSuccess, IssueID: r.States[index].IssueID}
}

// persistAfterAction deletes a fully resolved review, or re-persists it with
// the TTL clamped to the original expiry so actions never extend a review's
// lifetime.
func (c *Coordinator) persistAfterAction(ctx context.Context, r *models.ReviewRequest) error {
	if r.Resolved() {
		if err := c.store.Delete(ctx, r.ID); err != nil {
			// Cleanup is not safety-critical; the TTL will evict it.
			c.logger.Warn("review cleanup failed", "review_id", r.ID, "error", err)
		}
		return nil
	}

	remaining := c.ttl - time.Since(r.CreatedAt)
	if remaining <= 0 {
		remaining = time.Second
	}
	if err := c.store.Put(ctx, r, remaining); err != nil {
		// The user's decision (and possibly a created issue) is not
		// reflected in stored state. Distinct from an ordinary miss.
		c.logger.Error("review state desync: action applied but not persisted",
			"review_id", r.ID, "error", err)
		return fmt.Errorf("persist review %s: %w", r.ID, err)
	}
	return nil
}

// pushRender updates the review message, logging failures. Message updates
// are a projection of stored state, never a second source of truth.
func (c *Coordinator) pushRender(ctx context.Context, r *models.ReviewRequest, msg chat.Message) {
	if r.Message == nil {
		return
	}
	if err := c.chat.UpdateMessage(ctx, *r.Message, msg); err != nil {
		c.logger.Warn("review message update failed", "review_id", r.ID, "error", err)
	}
}
