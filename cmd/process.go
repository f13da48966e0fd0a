package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/triage/internal/extract"
	"github.com/joescharf/triage/internal/output"
)

var (
	processSummary string
	processTitle   string
	processPost    bool
)

var processCmd = &cobra.Command{
	Use:   "process <transcript-file>",
	Short: "Extract action items from a local transcript",
	Long: `Extract action items from a transcript file using an LLM and preview
them. With --post, the items are also posted to chat as a review,
exactly as the webhook pipeline would.

Requires ANTHROPIC_API_KEY environment variable or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return processRun(cmd.Context(), args[0])
	},
}

func init() {
	processCmd.Flags().StringVar(&processSummary, "summary", "", "Call summary to give the LLM extra context")
	processCmd.Flags().StringVar(&processTitle, "title", "", "Call title (defaults to the file name)")
	processCmd.Flags().BoolVar(&processPost, "post", false, "Post the extracted items to chat as a review")
	rootCmd.AddCommand(processCmd)
}

func processRun(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	transcript := string(data)
	if strings.TrimSpace(transcript) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}

	client, err := newExtractor()
	if err != nil {
		return err
	}

	ui.Info("Extracting action items with LLM (%s)...", viper.GetString("anthropic.model"))
	items, err := client.ActionItems(ctx, transcript, processSummary)
	if err != nil {
		return fmt.Errorf("extract action items: %w", err)
	}

	if len(items) == 0 {
		ui.Info("No action items found in transcript.")
		return nil
	}

	// Preview table
	table := ui.Table([]string{"#", "Title", "Assignee", "Priority", "Due"})
	for i, item := range items {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			item.Title,
			item.Assignee,
			output.PriorityColor(string(item.Priority)),
			item.DueDate,
		})
	}
	_ = table.Render()

	if !processPost {
		ui.Info("%d action items extracted. Re-run with --post to send them for review.", len(items))
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would post a review with %d items", len(items))
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

	payloads := extract.ToIssuePayloads(items,
		viper.GetString("tracker.team_id"),
		viper.GetString("tracker.project_id"))

	postCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	reviewID, err := coordinator.PostReview(postCtx, items, payloads)
	if err != nil {
		return fmt.Errorf("post review: %w", err)
	}

	ui.Success("Review %s posted with %d items", reviewID, len(items))
	return nil
}
