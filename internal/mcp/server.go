// Package mcp exposes the review workflow as MCP tools so agents can list
// pending reviews and decide items without clicking chat buttons.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/review"
	"github.com/joescharf/triage/internal/reviewstore"
)

// Server wraps the review data layer and exposes it as MCP tools.
type Server struct {
	store reviewstore.Store
	coord *review.Coordinator
}

// NewServer creates the MCP server wrapper.
func NewServer(store reviewstore.Store, coord *review.Coordinator) *Server {
	return &Server{store: store, coord: coord}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("triage", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listReviewsTool())
	srv.AddTool(s.getReviewTool())
	srv.AddTool(s.decideItemTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

type itemOut struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Assignee string `json:"assignee,omitempty"`
	Priority string `json:"priority"`
	DueDate  string `json:"due_date,omitempty"`
	Status   string `json:"status"`
	IssueID  string `json:"issue_id,omitempty"`
}

func reviewItems(r *models.ReviewRequest) []itemOut {
	out := make([]itemOut, len(r.Items))
	for i, item := range r.Items {
		out[i] = itemOut{
			Index:    i,
			Title:    item.Title,
			Assignee: item.Assignee,
			Priority: string(item.Priority),
			DueDate:  item.DueDate,
			Status:   string(r.States[i].Status),
			IssueID:  r.States[i].IssueID,
		}
	}
	return out
}

// triage_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_list_reviews",
		mcp.WithDescription("List reviews still waiting on decisions. Returns a JSON array with id, created_at, and per-item pending counts."),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reviews, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reviews: %v", err)), nil
	}

	type reviewOut struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
		Items     int    `json:"items"`
		Pending   int    `json:"pending"`
	}

	out := make([]reviewOut, len(reviews))
	for i, r := range reviews {
		out[i] = reviewOut{
			ID:        r.ID,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Items:     len(r.Items),
			Pending:   r.PendingCount(),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal reviews: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_get_review
func (s *Server) getReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_get_review",
		mcp.WithDescription("Get one review with its items, their statuses, and any created issue IDs."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review ID")),
	)
	return tool, s.handleGetReview
}

func (s *Server) handleGetReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reviewID, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}

	r, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review not found: %s", reviewID)), nil
	}

	result := map[string]any{
		"id":         r.ID,
		"created_at": r.CreatedAt.Format(time.RFC3339),
		"items":      reviewItems(r),
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal review: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_decide_item
func (s *Server) decideItemTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_decide_item",
		mcp.WithDescription("Approve or reject one review item. Approving creates the tracker issue. Safe to repeat: an already-decided item is reported as such and never filed twice."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review ID")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based item index within the review")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("Either approve or reject")),
	)
	return tool, s.handleDecideItem
}

func (s *Server) handleDecideItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reviewID, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: index"), nil
	}
	decisionStr, err := request.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: decision"), nil
	}

	var decision review.Decision
	switch decisionStr {
	case "approve":
		decision = review.Approve
	case "reject":
		decision = review.Reject
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid decision: %s (must be approve or reject)", decisionStr)), nil
	}

	outcome := s.coord.HandleAction(ctx, reviewID, index, decision)

	result := map[string]any{
		"review_id": reviewID,
		"index":     index,
		"decision":  decisionStr,
		"outcome":   string(outcome.Status),
	}
	if outcome.IssueID != "" {
		result["issue_id"] = outcome.IssueID
	}
	if outcome.Err != nil {
		result["error"] = outcome.Err.Error()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal outcome: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
