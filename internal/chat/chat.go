// Package chat posts and updates the review messages users act on.
package chat

import (
	"context"

	"github.com/joescharf/triage/internal/models"
)

// Messenger is the chat-platform surface the coordinator depends on.
type Messenger interface {
	// PostMessage posts a new message and returns a reference usable with
	// UpdateMessage.
	PostMessage(ctx context.Context, channel string, msg Message) (models.MessageRef, error)

	// UpdateMessage replaces the message's content in place.
	UpdateMessage(ctx context.Context, ref models.MessageRef, msg Message) error

	// PostEphemeral sends a transient notice visible only to one user.
	PostEphemeral(ctx context.Context, channel, userID, text string) error
}

// Message is a block-structured chat message with a plain-text fallback.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is a single message block: a section of markdown text or a row of
// action buttons.
type Block struct {
	Type     string   `json:"type"` // "section" or "actions"
	Text     *Text    `json:"text,omitempty"`
	Elements []Button `json:"elements,omitempty"`
}

// Text is a text object within a block.
type Text struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

// Button is an interactive element. ActionID and Value round-trip through
// the platform's action callback.
type Button struct {
	Type     string `json:"type"` // always "button"
	Text     *Text  `json:"text"`
	ActionID string `json:"action_id"`
	Value    string `json:"value"`
	Style    string `json:"style,omitempty"` // "primary", "danger", or empty
}

// Section builds a markdown section block.
func Section(markdown string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: markdown}}
}

// Actions builds a button row.
func Actions(buttons ...Button) Block {
	return Block{Type: "actions", Elements: buttons}
}

// NewButton builds a button with a plain-text label.
func NewButton(label, actionID, value, style string) Button {
	return Button{
		Type:     "button",
		Text:     &Text{Type: "plain_text", Text: label},
		ActionID: actionID,
		Value:    value,
		Style:    style,
	}
}
