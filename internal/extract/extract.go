// Package extract turns call transcripts into structured action items via
// the Anthropic API, and transforms them into tracker issue payloads.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/triage/internal/models"
)

// Client wraps the Anthropic API for action-item extraction.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for extraction.
func buildPrompt(transcript, summary string) (system string, user string) {
	system = `You extract action items from call transcripts. Return ONLY a JSON array of objects with these fields:
- "title": concise action item title, phrased as a task
- "description": brief description with enough context to act on (can be empty string if the title is self-explanatory)
- "assignee": the name of the person who committed to the task, or empty string if unclear
- "priority": one of "urgent", "high", "medium", "low"
- "due_date": the agreed date in YYYY-MM-DD format, or empty string if none was mentioned

Rules:
- Only include concrete commitments and follow-ups, not general discussion points
- Default priority to "medium" unless the conversation suggests otherwise
- Never invent assignees or dates that were not stated
- If there are no action items, return an empty array []
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if summary != "" {
		sb.WriteString("Call summary:\n")
		sb.WriteString(summary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Extract action items from this transcript:\n\n")
	sb.WriteString(transcript)
	user = sb.String()
	return
}

// ActionItems sends a transcript to the LLM and returns structured items.
func (c *Client) ActionItems(ctx context.Context, transcript, summary string) ([]models.ActionItem, error) {
	systemPrompt, userPrompt := buildPrompt(transcript, summary)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseResponse(text)
}

// parseResponse decodes the LLM's JSON array, tolerating markdown fencing,
// and normalizes fields.
func parseResponse(text string) ([]models.ActionItem, error) {
	text = stripFences(text)

	var items []models.ActionItem
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	out := items[:0]
	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			continue
		}
		item.Priority = models.NormalizePriority(string(item.Priority))
		out = append(out, item)
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// ToIssuePayload maps one extracted item onto the tracker's creation schema
// for the configured team/project.
func ToIssuePayload(item models.ActionItem, teamID, projectID string) models.IssuePayload {
	return models.IssuePayload{
		Title:       item.Title,
		Description: item.Description,
		TeamID:      teamID,
		ProjectID:   projectID,
		AssigneeID:  item.Assignee,
		Priority:    models.NormalizePriority(string(item.Priority)),
		DueDate:     item.DueDate,
	}
}

// ToIssuePayloads transforms items in order, keeping index alignment with
// the input.
func ToIssuePayloads(items []models.ActionItem, teamID, projectID string) []models.IssuePayload {
	payloads := make([]models.IssuePayload, len(items))
	for i, item := range items {
		payloads[i] = ToIssuePayload(item, teamID, projectID)
	}
	return payloads
}
