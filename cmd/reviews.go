package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/review"
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List and decide pending reviews",
	Long: `List reviews still waiting on decisions, or decide items from the
terminal instead of chat.

Running bare 'triage reviews' is the same as 'triage reviews list'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewsListRun(cmd.Context())
	},
}

var reviewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewsListRun(cmd.Context())
	},
}

var reviewsShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show one review's items and their statuses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewsShowRun(cmd.Context(), args[0])
	},
}

var reviewsApproveCmd = &cobra.Command{
	Use:   "approve <review-id> <item-number>",
	Short: "Approve an item and file its tracker issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewsDecideRun(cmd.Context(), args[0], args[1], review.Approve)
	},
}

var reviewsRejectCmd = &cobra.Command{
	Use:   "reject <review-id> <item-number>",
	Short: "Reject an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewsDecideRun(cmd.Context(), args[0], args[1], review.Reject)
	},
}

func init() {
	reviewsCmd.AddCommand(reviewsListCmd)
	reviewsCmd.AddCommand(reviewsShowCmd)
	reviewsCmd.AddCommand(reviewsApproveCmd)
	reviewsCmd.AddCommand(reviewsRejectCmd)
	rootCmd.AddCommand(reviewsCmd)
}

func reviewsListRun(ctx context.Context) error {
	store, err := getStore()
	if err != nil {
		return err
	}

	reviews, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}

	if len(reviews) == 0 {
		ui.Info("No unresolved reviews.")
		return nil
	}

	table := ui.Table([]string{"ID", "Created", "Items", "Pending"})
	for _, r := range reviews {
		_ = table.Append([]string{
			r.ID,
			r.CreatedAt.Local().Format(time.RFC822),
			fmt.Sprintf("%d", len(r.Items)),
			fmt.Sprintf("%d", r.PendingCount()),
		})
	}
	return table.Render()
}

func reviewsShowRun(ctx context.Context, reviewID string) error {
	store, err := getStore()
	if err != nil {
		return err
	}

	r, err := store.Get(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("get review: %w", err)
	}

	ui.Info("Review %s (created %s)", r.ID, r.CreatedAt.Local().Format(time.RFC822))
	table := ui.Table([]string{"#", "Title", "Assignee", "Priority", "Status", "Issue"})
	for i, item := range r.Items {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			item.Title,
			item.Assignee,
			output.PriorityColor(string(item.Priority)),
			output.StatusColor(string(r.States[i].Status)),
			r.States[i].IssueID,
		})
	}
	return table.Render()
}

// reviewsDecideRun applies one decision. Item numbers are 1-based on the
// command line, matching the numbers shown in the chat message.
func reviewsDecideRun(ctx context.Context, reviewID, itemNumber string, decision review.Decision) error {
	n, err := strconv.Atoi(itemNumber)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid item number %q (items are numbered from 1)", itemNumber)
	}

	if dryRun {
		ui.DryRunMsg("Would %s item %d of review %s", decision, n, reviewID)
		return nil
	}

	store, err := getStore()
	if err != nil {
		return err
	}
	coordinator, err := newCoordinator(store, newLogger())
	if err != nil {
		return err
	}

	outcome := coordinator.HandleAction(ctx, reviewID, n-1, decision)
	switch outcome.Status {
	case review.OutcomeSuccess:
		if outcome.IssueID != "" {
			ui.Success("Item %d approved, created issue %s", n, outcome.IssueID)
		} else {
			ui.Success("Item %d rejected", n)
		}
		return nil
	case review.OutcomeNotFound:
		return fmt.Errorf("review %s not found or expired", reviewID)
	case review.OutcomeAlreadyProcessed:
		if outcome.IssueID != "" {
			ui.Warning("Item %d was already handled (issue %s)", n, outcome.IssueID)
		} else {
			ui.Warning("Item %d was already handled", n)
		}
		return nil
	case review.OutcomeApprovalFailed:
		return fmt.Errorf("issue creation failed, item is still pending: %w", outcome.Err)
	default:
		return outcome.Err
	}
}
