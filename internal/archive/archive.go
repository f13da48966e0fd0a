// Package archive writes call transcripts into a git-backed archive.
package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joescharf/triage/internal/git"
	"github.com/joescharf/triage/internal/models"
)

// Archiver commits transcripts into a local clone of the archive repo.
// Commits are mandatory for a successful save; push is best-effort.
type Archiver struct {
	dir    string
	git    git.Client
	logger *slog.Logger
	push   bool
}

// New creates an archiver rooted at dir, which must be inside a git clone.
func New(dir string, gc git.Client, push bool, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{dir: dir, git: gc, logger: logger, push: push}
}

// SaveTranscript writes the transcript as markdown, commits it, and
// optionally pushes. Returns the path relative to the archive dir.
func (a *Archiver) SaveTranscript(call models.Call, transcript, summary string) (string, error) {
	name := FileName(call)
	fullPath := filepath.Join(a.dir, "transcripts", name)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create transcripts directory: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(renderDocument(call, transcript, summary)), 0644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	rel := filepath.Join("transcripts", name)
	if err := a.git.Add(a.dir, rel); err != nil {
		return "", fmt.Errorf("stage transcript: %w", err)
	}
	if err := a.git.Commit(a.dir, fmt.Sprintf("Archive transcript: %s", call.Title)); err != nil {
		return "", fmt.Errorf("commit transcript: %w", err)
	}

	if a.push {
		if err := a.git.Push(a.dir); err != nil {
			a.logger.Warn("transcript push failed", "call_id", call.ID, "error", err)
		}
	}
	return rel, nil
}

// FileName builds the archive file name: YYYY-MM-DD-<slug>.md.
func FileName(call models.Call) string {
	date := call.OccurredAt
	if date.IsZero() {
		date = time.Now()
	}
	slug := Slugify(call.Title)
	if slug == "" {
		slug = Slugify(call.ID)
	}
	if slug == "" {
		slug = "call"
	}
	return fmt.Sprintf("%s-%s.md", date.UTC().Format("2006-01-02"), slug)
}

// Slugify lowercases s and reduces it to hyphen-separated alphanumerics.
func Slugify(s string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			sb.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(sb.String(), "-")
}

func renderDocument(call models.Call, transcript, summary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", call.Title)
	if !call.OccurredAt.IsZero() {
		fmt.Fprintf(&sb, "- Date: %s\n", call.OccurredAt.UTC().Format(time.RFC3339))
	}
	if call.ID != "" {
		fmt.Fprintf(&sb, "- Recording ID: %s\n", call.ID)
	}
	if len(call.Participants) > 0 {
		fmt.Fprintf(&sb, "- Participants: %s\n", strings.Join(call.Participants, ", "))
	}
	sb.WriteString("\n")
	if summary != "" {
		fmt.Fprintf(&sb, "## Summary\n\n%s\n\n", summary)
	}
	fmt.Fprintf(&sb, "## Transcript\n\n%s\n", transcript)
	return sb.String()
}
