package models

import (
	"fmt"
	"time"
)

// ItemStatus is the per-item disposition within a review.
// Pending is the only non-terminal status.
type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemApproved ItemStatus = "approved"
	ItemRejected ItemStatus = "rejected"
)

// Terminal reports whether the status can no longer change.
func (s ItemStatus) Terminal() bool {
	return s == ItemApproved || s == ItemRejected
}

// ItemState tracks one index of a review. IssueID is set only after a
// successful approve.
type ItemState struct {
	Status  ItemStatus `json:"status"`
	IssueID string     `json:"issue_id,omitempty"`
}

// MessageRef identifies the chat message that mirrors a review's state.
type MessageRef struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

// ReviewRequest is one batch of action items awaiting human disposition.
// Items, Payloads, and Message are immutable after creation; only States
// changes, and each index changes exactly once (pending -> approved or
// pending -> rejected).
type ReviewRequest struct {
	ID        string       `json:"id"`
	Items     []ActionItem `json:"items"`
	Payloads  []IssuePayload `json:"payloads"`
	States    []ItemState  `json:"states"`
	CreatedAt time.Time    `json:"created_at"`
	Message   *MessageRef  `json:"message,omitempty"`
}

// NewReviewRequest builds a review with every index pending.
// Items and payloads must be index-aligned.
func NewReviewRequest(id string, items []ActionItem, payloads []IssuePayload) (*ReviewRequest, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("review requires at least one item")
	}
	if len(items) != len(payloads) {
		return nil, fmt.Errorf("items/payloads length mismatch: %d vs %d", len(items), len(payloads))
	}
	states := make([]ItemState, len(items))
	for i := range states {
		states[i] = ItemState{Status: ItemPending}
	}
	return &ReviewRequest{
		ID:        id,
		Items:     items,
		Payloads:  payloads,
		States:    states,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// PendingCount returns the number of indices still pending.
func (r *ReviewRequest) PendingCount() int {
	n := 0
	for _, s := range r.States {
		if s.Status == ItemPending {
			n++
		}
	}
	return n
}

// Resolved reports whether every index has left pending.
func (r *ReviewRequest) Resolved() bool {
	return r.PendingCount() == 0
}
