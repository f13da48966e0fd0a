package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/joescharf/triage/internal/review"
)

// actionRequest is the chat platform's button-click callback.
type actionRequest struct {
	ActionID  string `json:"action_id"`
	Value     string `json:"value"` // "<reviewID>:<index>"
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// handleAction acknowledges a button click immediately and processes the
// decision in the background. Chat platforms time out callbacks in a few
// seconds, while an approve may spend longer in tracker retries.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	var decision review.Decision
	switch req.ActionID {
	case review.ActionApprove:
		decision = review.Approve
	case review.ActionReject:
		decision = review.Reject
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.ActionID))
		return
	}

	reviewID, index, err := review.ParseActionValue(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed action value")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})

	process := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.actionTimeout)
		defer cancel()
		s.processAction(ctx, req, reviewID, index, decision)
	}
	if s.syncActions {
		process()
	} else {
		go process()
	}
}

func (s *Server) processAction(ctx context.Context, req actionRequest, reviewID string, index int, decision review.Decision) {
	outcome := s.coordinator.HandleAction(ctx, reviewID, index, decision)

	s.logger.Info("action processed",
		"review_id", reviewID,
		"index", index,
		"decision", decision,
		"outcome", outcome.Status,
		"user_id", req.UserID,
	)

	if notice := noticeText(outcome); notice != "" {
		if err := s.chat.PostEphemeral(ctx, req.ChannelID, req.UserID, notice); err != nil {
			s.logger.Warn("ephemeral notice failed", "review_id", reviewID, "error", err)
		}
	}
}

// noticeText maps an action outcome to a private notice for the clicking
// user. Success needs none: the message update already shows it.
func noticeText(o review.Outcome) string {
	switch o.Status {
	case review.OutcomeSuccess:
		return ""
	case review.OutcomeNotFound:
		return "This review has expired or no longer exists."
	case review.OutcomeAlreadyProcessed:
		if o.IssueID != "" {
			return fmt.Sprintf("That item was already handled (issue %s).", o.IssueID)
		}
		return "That item was already handled."
	case review.OutcomeApprovalFailed:
		return "Issue creation failed. The item is still pending, so you can try again."
	default:
		return "Something went wrong processing your action. Please try again."
	}
}
