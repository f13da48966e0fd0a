package review

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/models"
)

func renderFixture(t *testing.T) *models.ReviewRequest {
	t.Helper()
	r, err := models.NewReviewRequest("01TEST",
		[]models.ActionItem{
			{Title: "Follow up with ACME", Description: "Send revised quote", Priority: models.PriorityUrgent, Assignee: "sam", DueDate: "2026-09-05"},
			{Title: "Schedule demo", Priority: models.PriorityLow},
		},
		[]models.IssuePayload{
			{Title: "Follow up with ACME", TeamID: "T1"},
			{Title: "Schedule demo", TeamID: "T1"},
		},
	)
	require.NoError(t, err)
	return r
}

func TestRenderIsPure(t *testing.T) {
	r := renderFixture(t)

	a, err := json.Marshal(RenderReview(r))
	require.NoError(t, err)
	b, err := json.Marshal(RenderReview(r))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "same state must render byte-identically")
}

func TestRenderPendingShowsButtons(t *testing.T) {
	r := renderFixture(t)
	msg := RenderReview(r)

	var buttons int
	for _, block := range msg.Blocks {
		for _, el := range block.Elements {
			buttons++
			reviewID, index, err := ParseActionValue(el.Value)
			require.NoError(t, err)
			assert.Equal(t, "01TEST", reviewID)
			assert.Contains(t, []int{0, 1}, index)
		}
	}
	// Two independent affordances per pending item
	assert.Equal(t, 4, buttons)

	text := blocksText(msg)
	assert.Contains(t, text, "Follow up with ACME")
	assert.Contains(t, text, ":red_circle: Urgent")
	assert.Contains(t, text, ":large_green_circle: Low")
	assert.Contains(t, text, "sam")
	assert.Contains(t, text, "due 2026-09-05")
}

func TestRenderTerminalOmitsButtons(t *testing.T) {
	r := renderFixture(t)
	r.States[0] = models.ItemState{Status: models.ItemApproved, IssueID: "ISS-12"}
	r.States[1] = models.ItemState{Status: models.ItemRejected}

	msg := RenderReview(r)
	for _, block := range msg.Blocks {
		assert.Empty(t, block.Elements, "terminal items must not render buttons")
	}

	text := blocksText(msg)
	assert.Contains(t, text, "Approved")
	assert.Contains(t, text, "ISS-12")
	assert.Contains(t, text, "Rejected")
}

func TestRenderProcessingBadge(t *testing.T) {
	r := renderFixture(t)
	msg := renderProcessing(r, 0)

	text := blocksText(msg)
	assert.Contains(t, text, "Creating issue")

	// Index 1 keeps its buttons while index 0 is in flight
	var values []string
	for _, block := range msg.Blocks {
		for _, el := range block.Elements {
			values = append(values, el.Value)
		}
	}
	assert.Equal(t, []string{"01TEST:1", "01TEST:1"}, values)
}

func TestRenderTruncatesDescription(t *testing.T) {
	r := renderFixture(t)
	r.Items[0].Description = strings.Repeat("x", 500)

	text := blocksText(RenderReview(r))
	assert.Contains(t, text, strings.Repeat("x", descLimit)+"…")
	assert.NotContains(t, text, strings.Repeat("x", descLimit+1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "abc…", truncate("abcdef", 3))
	// Rune-safe, not byte-safe
	assert.Equal(t, "héll…", truncate("héllo world", 4))
}

func TestParseActionValue(t *testing.T) {
	id, index, err := ParseActionValue(EncodeActionValue("01ABC", 3))
	require.NoError(t, err)
	assert.Equal(t, "01ABC", id)
	assert.Equal(t, 3, index)

	_, _, err = ParseActionValue("garbage")
	assert.Error(t, err)
	_, _, err = ParseActionValue(":1")
	assert.Error(t, err)
	_, _, err = ParseActionValue("id:notanumber")
	assert.Error(t, err)
}

