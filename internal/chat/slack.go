package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/triage/internal/models"
)

const defaultSlackBaseURL = "https://slack.com/api"

// SlackClient implements Messenger against the Slack Web API.
type SlackClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewSlackClient creates a Slack messenger with the given bot token.
func NewSlackClient(token string) *SlackClient {
	return &SlackClient{
		baseURL: defaultSlackBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewSlackClientWithBaseURL is used by tests to point at a fake server.
func NewSlackClientWithBaseURL(token, baseURL string) *SlackClient {
	c := NewSlackClient(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type slackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

func (c *SlackClient) call(ctx context.Context, method string, body any) (*slackResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var parsed slackResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s: %s", method, parsed.Error)
	}
	return &parsed, nil
}

func (c *SlackClient) PostMessage(ctx context.Context, channel string, msg Message) (models.MessageRef, error) {
	resp, err := c.call(ctx, "chat.postMessage", map[string]any{
		"channel": channel,
		"text":    msg.Text,
		"blocks":  msg.Blocks,
	})
	if err != nil {
		return models.MessageRef{}, err
	}
	return models.MessageRef{Channel: resp.Channel, Timestamp: resp.TS}, nil
}

func (c *SlackClient) UpdateMessage(ctx context.Context, ref models.MessageRef, msg Message) error {
	_, err := c.call(ctx, "chat.update", map[string]any{
		"channel": ref.Channel,
		"ts":      ref.Timestamp,
		"text":    msg.Text,
		"blocks":  msg.Blocks,
	})
	return err
}

func (c *SlackClient) PostEphemeral(ctx context.Context, channel, userID, text string) error {
	_, err := c.call(ctx, "chat.postEphemeral", map[string]any{
		"channel": channel,
		"user":    userID,
		"text":    text,
	})
	return err
}
