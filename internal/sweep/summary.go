package sweep

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Counts tallies decisions for one workspace. In dry-run mode, would-stop
// and would-delete land in the same Stopped/Deleted buckets.
type Counts struct {
	Seen            int `json:"seen"`
	Stopped         int `json:"stopped"`
	Deleted         int `json:"deleted"`
	SkippedExcepted int `json:"skipped_excepted"`
	SkippedError    int `json:"skipped_error"`
	Noop            int `json:"noop"`
}

// WorkspaceSummary is the outcome for one workspace.
type WorkspaceSummary struct {
	Name   string `json:"name"`
	Counts Counts `json:"counts"`
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`
}

// Summary is the outcome of a full sweep pass.
type Summary struct {
	RunID      string             `json:"run_id"`
	DryRun     bool               `json:"dry_run"`
	Workspaces []WorkspaceSummary `json:"workspaces"`
}

// Totals aggregates counts across workspaces.
func (s *Summary) Totals() Counts {
	var t Counts
	for _, ws := range s.Workspaces {
		t.Seen += ws.Counts.Seen
		t.Stopped += ws.Counts.Stopped
		t.Deleted += ws.Counts.Deleted
		t.SkippedExcepted += ws.Counts.SkippedExcepted
		t.SkippedError += ws.Counts.SkippedError
		t.Noop += ws.Counts.Noop
	}
	return t
}

// FailedWorkspaces returns how many workspaces could not be processed.
func (s *Summary) FailedWorkspaces() int {
	n := 0
	for _, ws := range s.Workspaces {
		if ws.Failed {
			n++
		}
	}
	return n
}

// FormatJSON renders the summary as indented JSON.
func FormatJSON(s *Summary) (string, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FormatHuman renders the summary as readable text.
func FormatHuman(s *Summary) string {
	var b strings.Builder

	mode := "live"
	if s.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(&b, "Sweep %s (%s)\n", s.RunID, mode)

	for _, ws := range s.Workspaces {
		if ws.Failed {
			fmt.Fprintf(&b, "  %s: FAILED (%s)\n", ws.Name, ws.Error)
			continue
		}
		c := ws.Counts
		fmt.Fprintf(&b, "  %s: %d apps, %d stopped, %d deleted, %d excepted, %d errored, %d untouched\n",
			ws.Name, c.Seen, c.Stopped, c.Deleted, c.SkippedExcepted, c.SkippedError, c.Noop)
	}

	t := s.Totals()
	fmt.Fprintf(&b, "Total: %d apps, %d stopped, %d deleted, %d excepted, %d errored, %d untouched\n",
		t.Seen, t.Stopped, t.Deleted, t.SkippedExcepted, t.SkippedError, t.Noop)
	if failed := s.FailedWorkspaces(); failed > 0 {
		fmt.Fprintf(&b, "Workspaces failed: %d\n", failed)
	}
	return b.String()
}
