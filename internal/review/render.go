package review

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joescharf/triage/internal/chat"
	"github.com/joescharf/triage/internal/models"
)

// descLimit bounds the rendered description length, in runes.
const descLimit = 200

// Button action IDs delivered back through the action callback.
const (
	ActionApprove = "review_approve"
	ActionReject  = "review_reject"
)

// EncodeActionValue packs a review ID and item index into a button value.
func EncodeActionValue(reviewID string, index int) string {
	return reviewID + ":" + strconv.Itoa(index)
}

// ParseActionValue unpacks a button value produced by EncodeActionValue.
func ParseActionValue(value string) (reviewID string, index int, err error) {
	i := strings.LastIndex(value, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed action value: %q", value)
	}
	index, err = strconv.Atoi(value[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed action value: %q", value)
	}
	return value[:i], index, nil
}

// RenderReview renders the review message from its authoritative state.
// Pure: the same review renders to the same message.
func RenderReview(r *models.ReviewRequest) chat.Message {
	return renderReview(r, -1)
}

// renderProcessing marks one index as in flight while its issue is created.
func renderProcessing(r *models.ReviewRequest, index int) chat.Message {
	return renderReview(r, index)
}

func renderReview(r *models.ReviewRequest, processingIndex int) chat.Message {
	blocks := []chat.Block{
		chat.Section(fmt.Sprintf("*%d action item(s) for review* — approve to create tracker issues", len(r.Items))),
	}

	for i, item := range r.Items {
		var sb strings.Builder
		fmt.Fprintf(&sb, "*%d. %s*\n", i+1, item.Title)
		if desc := truncate(item.Description, descLimit); desc != "" {
			sb.WriteString(desc)
			sb.WriteString("\n")
		}
		sb.WriteString(priorityLabel(item.Priority))
		if item.Assignee != "" {
			fmt.Fprintf(&sb, "  ·  %s", item.Assignee)
		}
		if item.DueDate != "" {
			fmt.Fprintf(&sb, "  ·  due %s", item.DueDate)
		}

		state := r.States[i]
		switch {
		case state.Status == models.ItemApproved:
			fmt.Fprintf(&sb, "\n:white_check_mark: *Approved*")
			if state.IssueID != "" {
				fmt.Fprintf(&sb, " — %s", state.IssueID)
			}
			blocks = append(blocks, chat.Section(sb.String()))
		case state.Status == models.ItemRejected:
			sb.WriteString("\n:no_entry_sign: *Rejected*")
			blocks = append(blocks, chat.Section(sb.String()))
		case i == processingIndex:
			sb.WriteString("\n:hourglass_flowing_sand: Creating issue…")
			blocks = append(blocks, chat.Section(sb.String()))
		default:
			blocks = append(blocks, chat.Section(sb.String()))
			value := EncodeActionValue(r.ID, i)
			blocks = append(blocks, chat.Actions(
				chat.NewButton("Approve", ActionApprove, value, "primary"),
				chat.NewButton("Reject", ActionReject, value, "danger"),
			))
		}
	}

	return chat.Message{
		Text:   fmt.Sprintf("%d action item(s) for review", len(r.Items)),
		Blocks: blocks,
	}
}

func priorityLabel(p models.Priority) string {
	switch p {
	case models.PriorityUrgent:
		return ":red_circle: Urgent"
	case models.PriorityHigh:
		return ":large_orange_circle: High"
	case models.PriorityLow:
		return ":large_green_circle: Low"
	default:
		return ":large_yellow_circle: Medium"
	}
}

// truncate shortens s to at most limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
