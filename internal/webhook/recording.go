package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/triage/internal/chat"
	"github.com/joescharf/triage/internal/extract"
	"github.com/joescharf/triage/internal/models"
)

// recordingRequest is the provider's recording-ready payload.
type recordingRequest struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	OccurredAt   time.Time `json:"occurred_at"`
	Participants []string  `json:"participants"`
	Transcript   string    `json:"transcript"`
	Summary      string    `json:"summary"`
}

// handleRecording runs the full pipeline for one finished call: archive the
// transcript, extract action items, and post a review for them.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	var req recordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	call := models.Call{
		ID:           req.ID,
		Title:        req.Title,
		OccurredAt:   req.OccurredAt,
		Participants: req.Participants,
	}

	// Archival must not delay or fail extraction.
	if s.archiver != nil {
		go func() {
			if _, err := s.archiver.SaveTranscript(call, req.Transcript, req.Summary); err != nil {
				s.logger.Error("transcript archive failed", "call_id", call.ID, "error", err)
			}
		}()
	}

	items, err := s.extractor.ActionItems(r.Context(), req.Transcript, req.Summary)
	if err != nil {
		s.logger.Error("action item extraction failed", "call_id", call.ID, "error", err)
		writeError(w, http.StatusBadGateway, "extraction failed")
		return
	}

	if len(items) == 0 {
		s.logger.Info("no action items found", "call_id", call.ID)
		go s.postRecap(call, 0)
		writeJSON(w, http.StatusOK, map[string]any{"status": "no_action_items"})
		return
	}

	payloads := extract.ToIssuePayloads(items, s.cfg.TeamID, s.cfg.ProjectID)
	reviewID, err := s.coordinator.PostReview(r.Context(), items, payloads)
	if err != nil {
		s.logger.Error("review post failed", "call_id", call.ID, "error", err)
		writeError(w, http.StatusBadGateway, "posting review failed")
		return
	}

	go s.postRecap(call, len(items))
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":    "review_posted",
		"review_id": reviewID,
		"items":     len(items),
	})
}

// postRecap posts a short informational note about the processed call.
// Runs in the background off the request path; best-effort, since the
// review message is the surface that matters.
func (s *Server) postRecap(call models.Call, itemCount int) {
	title := call.Title
	if title == "" {
		title = call.ID
	}
	var text string
	switch itemCount {
	case 0:
		text = fmt.Sprintf(":telephone_receiver: Processed call *%s*. No action items found.", title)
	case 1:
		text = fmt.Sprintf(":telephone_receiver: Processed call *%s*. 1 action item is waiting for review.", title)
	default:
		text = fmt.Sprintf(":telephone_receiver: Processed call *%s*. %d action items are waiting for review.", title, itemCount)
	}
	if _, err := s.chat.PostMessage(context.Background(), s.channel, chat.Message{Text: text}); err != nil {
		s.logger.Warn("recap post failed", "call_id", call.ID, "error", err)
	}
}
