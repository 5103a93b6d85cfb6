// Package statefile reads and writes SESSION-STATE.md, the document that
// carries a session's summary across a reset or compaction.
package statefile

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/sessionhandoff/handoff/cmd/handoff/cli/paths"
)

// Trigger labels recorded in the document.
const (
	TriggerReset      = "Session reset"
	TriggerCompaction = "Pre-compaction update"
)

// DefaultGenerator is the footer attribution.
const DefaultGenerator = "session-handoff plugin"

// Title is the document's top-level heading.
const Title = "SESSION-STATE.md"

const (
	preamble        = "> Previous session context. Continue where you left off."
	separator       = "---"
	timestampLayout = "2006-01-02T15:04:05.000Z"

	labelUpdated = "Last updated"
	labelSession = "Session"
	labelTrigger = "Trigger"
)

// Document is one rendition of the session state.
type Document struct {
	UpdatedAt  time.Time
	SessionKey string
	Trigger    string
	Body       string
	// Generator names the producer in the footer. Empty means DefaultGenerator.
	Generator string
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Render returns the full document text. The template is complete even when
// Body is empty.
func (d Document) Render() string {
	generator := d.Generator
	if generator == "" {
		generator = DefaultGenerator
	}

	var sb strings.Builder
	sb.WriteString("# " + Title + "\n\n")
	sb.WriteString(preamble + "\n\n")
	fmt.Fprintf(&sb, "*%s: %s*\n", labelUpdated, FormatTimestamp(d.UpdatedAt))
	fmt.Fprintf(&sb, "*%s: %s*\n", labelSession, d.SessionKey)
	fmt.Fprintf(&sb, "*%s: %s*\n\n", labelTrigger, d.Trigger)
	sb.WriteString(separator + "\n\n")
	sb.WriteString(d.Body + "\n\n")
	sb.WriteString(separator + "\n\n")
	fmt.Fprintf(&sb, "*Auto-generated by %s*\n", generator)
	return sb.String()
}

// Write renders doc to <workspace>/SESSION-STATE.md, replacing any existing
// file. The workspace directory must exist.
func Write(workspace string, doc Document) error {
	if workspace == "" {
		return errors.New("workspace directory is empty")
	}
	path := paths.StateFile(workspace)
	//nolint:gosec // the state file is meant to be read by the agent
	if err := os.WriteFile(path, []byte(doc.Render()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Read returns the state file content of workspace. It is None when the
// file is missing, unreadable or whitespace-only.
func Read(workspace string) fn.Option[string] {
	if workspace == "" {
		return fn.None[string]()
	}
	data, err := os.ReadFile(paths.StateFile(workspace))
	if err != nil {
		return fn.None[string]()
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fn.None[string]()
	}
	return fn.Some(content)
}

// Exists reports whether workspace has a state file.
func Exists(workspace string) bool {
	if workspace == "" {
		return false
	}
	_, err := os.Stat(paths.StateFile(workspace))
	return err == nil
}
