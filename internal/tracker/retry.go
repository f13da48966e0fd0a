package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/triage/internal/models"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 8 * time.Second
	defaultBatchDelay   = 250 * time.Millisecond
)

// Client wraps an API with bounded retry and batch aggregation.
type Client struct {
	api    API
	logger *slog.Logger

	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	batchDelay   time.Duration
}

// Option adjusts Client behavior.
type Option func(*Client)

// WithMaxAttempts sets the attempt bound for CreateOne.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithDelays sets the initial/max backoff delays and the inter-success batch
// delay. Used by tests to keep runs fast.
func WithDelays(initial, max, batch time.Duration) Option {
	return func(c *Client) {
		c.initialDelay = initial
		c.maxDelay = max
		c.batchDelay = batch
	}
}

// NewClient creates a retrying tracker client.
func NewClient(api API, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		api:          api,
		logger:       logger,
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		batchDelay:   defaultBatchDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// CreateOne creates a single issue, retrying classified-retryable failures
// with exponential backoff. The last error keeps its original classification
// so callers can log it faithfully.
func (c *Client) CreateOne(ctx context.Context, payload models.IssuePayload) (string, error) {
	delay := c.initialDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		issueID, err := c.api.CreateIssue(ctx, payload)
		if err == nil {
			return issueID, nil
		}
		lastErr = err

		if !Retryable(err) {
			return "", fmt.Errorf("create issue %q: %w", payload.Title, err)
		}
		if attempt == c.maxAttempts {
			break
		}

		c.logger.Warn("issue create failed, retrying",
			"title", payload.Title, "attempt", attempt, "delay", delay, "error", err)

		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}

	return "", fmt.Errorf("create issue %q after %d attempts: %w", payload.Title, c.maxAttempts, lastErr)
}

// ItemFailure records one failed payload within a batch.
type ItemFailure struct {
	Index int
	Title string
	Err   error
}

// BatchResult aggregates per-item outcomes of CreateBatch.
type BatchResult struct {
	IssueIDs []string
	Failures []ItemFailure
}

// CreateBatch creates issues sequentially, pausing briefly between successes
// to stay under the tracker's rate limits. A failed item is recorded and the
// batch continues.
func (c *Client) CreateBatch(ctx context.Context, payloads []models.IssuePayload) BatchResult {
	var result BatchResult
	for i, payload := range payloads {
		issueID, err := c.CreateOne(ctx, payload)
		if err != nil {
			c.logger.Error("batch issue create failed", "index", i, "title", payload.Title, "error", err)
			result.Failures = append(result.Failures, ItemFailure{Index: i, Title: payload.Title, Err: err})
			continue
		}
		result.IssueIDs = append(result.IssueIDs, issueID)

		if i < len(payloads)-1 {
			if err := sleep(ctx, c.batchDelay); err != nil {
				// Context gone; report the rest as failed rather than lost.
				for j := i + 1; j < len(payloads); j++ {
					result.Failures = append(result.Failures, ItemFailure{Index: j, Title: payloads[j].Title, Err: err})
				}
				return result
			}
		}
	}
	return result
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
