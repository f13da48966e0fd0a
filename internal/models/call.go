package models

import "time"

// Call holds metadata about a recorded call delivered by the webhook.
type Call struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	OccurredAt   time.Time `json:"occurred_at"`
	Participants []string  `json:"participants,omitempty"`
}
