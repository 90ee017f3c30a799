// Package report renders coaching reports to markdown and persists them.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flashcoach/internal/compactor"
	"flashcoach/internal/riot"

	"github.com/google/uuid"
)

// Report is one finished coaching run
type Report struct {
	RunID       string
	Player      riot.Identity
	Region      riot.Region
	Model       string
	Matches     []compactor.CompactedMatch
	Body        string
	GeneratedAt time.Time
}

// New stamps a report with a fresh run id and the current time
func New(player riot.Identity, region riot.Region, model string, matches []compactor.CompactedMatch, body string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Player:      player,
		Region:      region,
		Model:       model,
		Matches:     matches,
		Body:        body,
		GeneratedAt: time.Now(),
	}
}

// Summary aggregates the report's matches
func (r *Report) Summary() compactor.Summary {
	return compactor.Summarize(r.Matches)
}

// Render returns the markdown document written to disk
func Render(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Flash Coach Report: %s\n\n", r.Player.RiotID())
	fmt.Fprintf(&b, "**Date**: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**Region**: %s\n", r.Region)
	fmt.Fprintf(&b, "**Model**: %s\n", r.Model)
	fmt.Fprintf(&b, "**Matches analysed**: %d\n\n", len(r.Matches))
	b.WriteString(r.Body)
	b.WriteString("\n")
	return b.String()
}

// FileName builds {dir}/{gameName}_{timestamp}.md. The timestamp is UTC
// RFC 3339 to the second with colons swapped for dashes.
func FileName(dir, gameName string, t time.Time) string {
	stamp := strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05"), ":", "-")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.md", safeName(gameName), stamp))
}

// safeName keeps a game name from escaping the reports directory
func safeName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "-")
	name = r.Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "player"
	}
	return name
}

// Writer saves rendered reports under a directory
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "reports"
	}
	return &Writer{dir: dir}
}

// Write renders r to a new file, creating the directory first, and returns the path
func (w *Writer) Write(r *Report) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := FileName(w.dir, r.Player.GameName, r.GeneratedAt)
	if err := os.WriteFile(path, []byte(Render(r)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
