package models

// Priority represents the urgency of an action item, highest to lowest.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NormalizePriority clamps arbitrary input to a known tier, defaulting to medium.
func NormalizePriority(s string) Priority {
	switch Priority(s) {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// ActionItem is a single human-readable action item extracted from a call.
type ActionItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Assignee    string   `json:"assignee,omitempty"`
	Priority    Priority `json:"priority"`
	DueDate     string   `json:"due_date,omitempty"` // YYYY-MM-DD, empty if none
}

// IssuePayload is the tracker-facing creation request for one action item.
type IssuePayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TeamID      string   `json:"team_id"`
	ProjectID   string   `json:"project_id,omitempty"`
	AssigneeID  string   `json:"assignee_id,omitempty"`
	Priority    Priority `json:"priority"`
	DueDate     string   `json:"due_date,omitempty"`
}
